package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"loanservice/internal/apperrors"
)

// remoteError carries a non-2xx response. The failure isolator wraps it into
// DependencyError{REMOTE_ERROR} on the way out.
type remoteError struct {
	StatusCode int
	Body       string
}

func (e *remoteError) Error() string {
	return fmt.Sprintf("remote http %d: %s", e.StatusCode, e.Body)
}

// getJSON issues a GET and decodes a 2xx body into out. A 404 maps to the
// NotFound variant for the given resource; other non-2xx statuses surface as
// remoteError.
func getJSON(ctx context.Context, hc *http.Client, url, resource, id string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return apperrors.NewNotFound(resource, id)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &remoteError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// patchJSON issues a PATCH with a JSON body. Success is inferred solely from
// a 2xx status; the response payload is not trusted and not read.
func patchJSON(ctx context.Context, hc *http.Client, url string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &remoteError{StatusCode: resp.StatusCode}
	}
	return nil
}
