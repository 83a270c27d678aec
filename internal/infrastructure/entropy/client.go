package entropy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domainerrors "entropy-gate.backend/internal/domain/errors"
)

// Fetcher is the narrow interface the generation logic consumes. The upstream
// hardware source is an opaque collaborator that may be slow, down or degraded.
type Fetcher interface {
	FetchEntropyString(ctx context.Context) (string, error)
}

// Client fetches entropy strings from the upstream source over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new entropy client. The timeout is conservative so a
// slow upstream cannot starve the request-handling pool.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchEntropyString fetches one opaque entropy string from the upstream source.
func (c *Client) FetchEntropyString(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("entropy source unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domainerrors.BadGateway(fmt.Sprintf("entropy source returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read entropy response: %w", err)
	}

	value := strings.TrimSpace(string(body))
	if value == "" {
		return "", domainerrors.BadGateway("entropy source returned empty response")
	}

	return value, nil
}
