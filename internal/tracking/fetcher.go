package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxProviderBody = 8 << 20

// Fetcher performs the single tracking call for one provider. Every call
// reaches the provider regardless of its earlier failures.
type Fetcher interface {
	Fetch(ctx context.Context, providerID, requestURL, containerNo string) (json.RawMessage, error)
}

// NewHTTPClient returns a client whose transport emits client spans.
func NewHTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// ProxyFetcher routes provider calls through the origin service's tracking
// proxy and unwraps its {"data": ...} envelope.
type ProxyFetcher struct {
	BaseURL string
	Client  *http.Client
}

func (f ProxyFetcher) Fetch(ctx context.Context, providerID, requestURL, containerNo string) (json.RawMessage, error) {
	target := fmt.Sprintf("%s/api/tracking/%s?externalApiUrl=%s",
		strings.TrimRight(f.BaseURL, "/"),
		url.PathEscape(strings.TrimSpace(containerNo)),
		url.QueryEscape(requestURL),
	)
	body, err := getJSON(ctx, f.Client, providerID, target)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ProviderError{Provider: providerID, Class: ClassDecode, Err: err}
	}
	return envelope.Data, nil
}

// DirectFetcher calls the provider endpoint itself.
type DirectFetcher struct {
	Client *http.Client
}

func (f DirectFetcher) Fetch(ctx context.Context, providerID, requestURL, _ string) (json.RawMessage, error) {
	body, err := getJSON(ctx, f.Client, providerID, requestURL)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &ProviderError{Provider: providerID, Class: ClassDecode, Err: errors.New("response is not valid JSON")}
	}
	return body, nil
}

func getJSON(ctx context.Context, client *http.Client, providerID, target string) ([]byte, error) {
	if client == nil {
		client = NewHTTPClient()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &ProviderError{Provider: providerID, Class: ClassNetwork, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: providerID, Class: ClassNetwork, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return nil, &ProviderError{Provider: providerID, Class: ClassNetwork, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			Provider:   providerID,
			Class:      ClassStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	return body, nil
}
