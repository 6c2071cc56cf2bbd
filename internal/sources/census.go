package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"msaloans/internal/config"
)

// CensusClient reads ACS 5-year profile data for every metropolitan and
// micropolitan statistical area.
type CensusClient struct {
	*Client
	baseURL  string
	year     int
	variable string
}

// NewCensusClient creates a census client from the sources config
func NewCensusClient(cfg config.SourcesConfig, httpClient *http.Client, logger *slog.Logger) *CensusClient {
	return &CensusClient{
		Client:   newClient("census", httpClient, logger),
		baseURL:  cfg.CensusBaseURL,
		year:     cfg.Year,
		variable: cfg.IncomeVariable,
	}
}

// URL returns the profile query for the configured year and variable
func (c *CensusClient) URL() string {
	return fmt.Sprintf("%s/data/%d/%s?get=NAME,%s&for=%s",
		c.baseURL, c.year, config.CensusDataset,
		url.QueryEscape(c.variable), strings.ReplaceAll(config.CensusGeography, " ", "%20"))
}

// FetchRegionIncome returns the raw JSON payload of [name, income, id] rows
func (c *CensusClient) FetchRegionIncome(ctx context.Context) ([]byte, error) {
	return c.get(ctx, c.URL())
}
