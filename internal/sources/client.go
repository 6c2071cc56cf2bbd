package sources

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"msaloans/internal/config"
	apperrors "msaloans/internal/errors"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics
const maxErrorBody = 512

// Client performs GET requests against one upstream source
type Client struct {
	name   string
	http   *http.Client
	logger *slog.Logger
}

func newClient(name string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		name:   name,
		http:   httpClient,
		logger: logger.With(slog.String("component", "source"), slog.String("source", name)),
	}
}

// get fetches url and returns the full body of a 2xx response
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("invalid %s request", c.name), err).
			WithContext("url", url)
	}
	req.Header.Set("User-Agent", config.AppName+"/"+config.AppVersion)

	start := time.Now()
	c.logger.InfoContext(ctx, "fetching upstream dataset", slog.String("url", url))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("%s request failed", c.name), err).
			WithContext("url", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apperrors.NewNetworkError(
			fmt.Sprintf("%s returned %s", c.name, resp.Status), nil).
			WithContext("url", url).
			WithContext("status", resp.StatusCode).
			WithContext("body", string(snippet))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("failed to read %s response", c.name), err).
			WithContext("url", url)
	}

	c.logger.InfoContext(ctx, "upstream dataset fetched",
		slog.Int("size_bytes", len(body)),
		slog.Duration("duration", time.Since(start)))

	return body, nil
}
