package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"loanservice/internal/breaker"
	"loanservice/internal/logger"
	"loanservice/internal/models"
)

// UserClient is the typed gateway to the User service.
type UserClient interface {
	// FetchUser returns the user's time-of-call snapshot, or NotFound /
	// DependencyError.
	FetchUser(ctx context.Context, userID uuid.UUID) (*models.UserSnapshot, error)
}

type userClient struct {
	log     *logger.Logger
	baseURL string
	http    *http.Client
	fetch   *breaker.Breaker
}

// NewUserClient wires the gateway to its failure isolator. The breaker owns
// the per-call deadline; the http.Client deliberately carries no timeout of
// its own.
func NewUserClient(baseURL string, fetch *breaker.Breaker, log *logger.Logger) UserClient {
	return &userClient{
		log:     log.With("client", "UserClient"),
		baseURL: baseURL,
		http:    &http.Client{},
		fetch:   fetch,
	}
}

func (c *userClient) FetchUser(ctx context.Context, userID uuid.UUID) (*models.UserSnapshot, error) {
	var snap models.UserSnapshot
	err := c.fetch.Execute(ctx, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/api/users/%s", c.baseURL, userID)
		return getJSON(ctx, c.http, url, "user", userID.String(), &snap)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
