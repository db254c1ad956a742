package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/solumart/cartcheckout/internal/catalog"
	"github.com/solumart/cartcheckout/pkg/httpclient"
)

// Catalog implements catalog.Catalog against a remote product service,
// protected by a circuit breaker.
type Catalog struct {
	client  *httpclient.CircuitBreakerClient
	baseURL string
}

// New creates a circuit-breaker-protected remote catalog client.
func New(baseURL string, logger *slog.Logger) *Catalog {
	client := httpclient.New(httpclient.DefaultConfig())
	cb := httpclient.NewCircuitBreakerClient(client, httpclient.DefaultCircuitBreakerConfig("catalog"), logger)
	return &Catalog{
		client:  cb,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewWithClient creates a remote catalog with an injected client. Used by tests.
func NewWithClient(baseURL string, client *httpclient.CircuitBreakerClient) *Catalog {
	return &Catalog{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// productResponse mirrors the catalog service's response envelope.
type productResponse struct {
	Data *catalog.Product `json:"data"`
}

// Lookup fetches a product from the remote catalog service.
func (c *Catalog) Lookup(ctx context.Context, productID string) (*catalog.Product, error) {
	endpoint := c.baseURL + "/products/" + url.PathEscape(productID)

	resp, err := c.client.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "catalog")
	}
	defer resp.Body.Close()

	var body productResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("catalog response missing data")
	}

	return body.Data, nil
}
