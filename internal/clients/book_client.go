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

// BookClient is the typed gateway to the Book service. Fetching a book and
// adjusting its availability are guarded by separate failure isolators so
// the health of one capability never bleeds into the other.
type BookClient interface {
	// FetchBook returns the book's time-of-call snapshot, or NotFound /
	// DependencyError.
	FetchBook(ctx context.Context, bookID uuid.UUID) (*models.BookSnapshot, error)

	// AdjustAvailability increments or decrements the book's lendable copy
	// count. Fire-and-verify: success is inferred from the absence of an
	// error, no response payload is trusted.
	AdjustAvailability(ctx context.Context, bookID uuid.UUID, op models.AvailabilityOp) error
}

type bookClient struct {
	log     *logger.Logger
	baseURL string
	http    *http.Client
	fetch   *breaker.Breaker
	adjust  *breaker.Breaker
}

func NewBookClient(baseURL string, fetch, adjust *breaker.Breaker, log *logger.Logger) BookClient {
	return &bookClient{
		log:     log.With("client", "BookClient"),
		baseURL: baseURL,
		http:    &http.Client{},
		fetch:   fetch,
		adjust:  adjust,
	}
}

func (c *bookClient) FetchBook(ctx context.Context, bookID uuid.UUID) (*models.BookSnapshot, error) {
	var snap models.BookSnapshot
	err := c.fetch.Execute(ctx, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/api/books/%s", c.baseURL, bookID)
		return getJSON(ctx, c.http, url, "book", bookID.String(), &snap)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

type availabilityRequest struct {
	Operation models.AvailabilityOp `json:"operation"`
}

func (c *bookClient) AdjustAvailability(ctx context.Context, bookID uuid.UUID, op models.AvailabilityOp) error {
	return c.adjust.Execute(ctx, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/api/books/%s/availability", c.baseURL, bookID)
		return patchJSON(ctx, c.http, url, availabilityRequest{Operation: op})
	})
}
