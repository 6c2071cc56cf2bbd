package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"msaloans/internal/config"
	apperrors "msaloans/internal/errors"
)

// CFPBClient reads HMDA loan records from the FFIEC data browser
type CFPBClient struct {
	*Client
	baseURL string
	year    int
}

// NewCFPBClient creates a data browser client from the sources config
func NewCFPBClient(cfg config.SourcesConfig, httpClient *http.Client, logger *slog.Logger) *CFPBClient {
	return &CFPBClient{
		Client:  newClient("cfpb", httpClient, logger),
		baseURL: cfg.CFPBBaseURL,
		year:    cfg.Year,
	}
}

// URL returns the CSV export query for regionIDs
func (c *CFPBClient) URL(regionIDs []string) string {
	return fmt.Sprintf("%s/v2/data-browser-api/view/csv?msamds=%s&years=%d",
		c.baseURL, url.QueryEscape(strings.Join(regionIDs, ",")), c.year)
}

// FetchLoans returns the raw CSV export for regionIDs
func (c *CFPBClient) FetchLoans(ctx context.Context, regionIDs []string) ([]byte, error) {
	if len(regionIDs) == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, "no regions selected for loan query", nil)
	}
	return c.get(ctx, c.URL(regionIDs))
}
