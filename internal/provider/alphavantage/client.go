package alphavantage

import (
	"net/http"
	"net/url"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=alphavantage_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const defaultBaseURL = "https://www.alphavantage.co"

// Client is a client for the Alpha Vantage query API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient performs the requests.
	httpClient HTTPClient
	// header contains additional headers sent with each request.
	header http.Header
	// query contains query parameters sent with each request (apikey).
	query url.Values
}

// ClientOption is a configuration option for the Alpha Vantage client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient creates a new Alpha Vantage client. The key is sent as the
// apikey query parameter on every request; an empty key is allowed here
// so callers decide whether an uncredentialed client is usable.
func NewClient(key string, options ...ClientOption) (*Client, error) {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
	}
	if key != "" {
		c.query.Add("apikey", key)
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}
