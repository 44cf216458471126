package cdse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	internalhttp "github.com/example/go-cdse/cdse/internal/http"
	"github.com/example/go-cdse/cdse/model"
)

const (
	defaultBaseURL = "https://catalogue.dataspace.copernicus.eu"
	productsPath   = "odata/v1/Products"

	// maxPageSize is the largest $top value the catalogue accepts.
	maxPageSize = 1000

	// requestTimeout bounds each individual page fetch.
	requestTimeout = 120 * time.Second
)

var (
	// ErrNilClient is returned when methods are invoked on a nil Client pointer.
	ErrNilClient = errors.New("cdse: nil client")
	// ErrEmptyBoundingBox indicates the all-zero default query region, which
	// is rejected before any network call.
	ErrEmptyBoundingBox = errors.New("cdse: bounding box is empty")
	// ErrMissingProduct indicates a query without a product configuration.
	ErrMissingProduct = errors.New("cdse: product configuration required")
)

// Client provides access to the Copernicus Data Space OData catalogue.
type Client struct {
	baseURL string
	session *Session
}

// Option mutates the client when constructing it.
type Option func(*Client)

// WithBaseURL overrides the default catalogue host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient configures a custom HTTP client instance.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if c.session == nil {
			c.session = NewSession()
		}
		c.session.client = hc
	}
}

// WithAuthToken configures the bearer token used for authenticated requests.
// Catalogue queries are anonymous; the token only matters for protected
// product endpoints.
func WithAuthToken(token string) Option {
	return WithAuthenticator(BearerToken(token))
}

// WithAuthenticator sets a custom authenticator for the client's session.
func WithAuthenticator(auth Authenticator) Option {
	return func(c *Client) {
		if c.session == nil {
			c.session = NewSession()
		}
		c.session.authenticator = auth
	}
}

// WithSession allows callers to provide a preconfigured session.
func WithSession(session *Session) Option {
	return func(c *Client) {
		c.session = session
	}
}

// NewClient creates a Client with sensible defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		session: NewSession(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.session == nil {
		c.session = NewSession()
	}
	return c
}

// Search runs the catalogue query and accumulates raw product records across
// pages. It issues sequential GETs, following each server-supplied
// @odata.nextLink verbatim until no link remains or req.MaxResults is
// reached. Progress notifications are emitted through sink, which may be nil.
func (c *Client) Search(ctx context.Context, req QueryRequest, sink ProgressSink) ([]model.Product, error) {
	if c == nil {
		return nil, ErrNilClient
	}
	if c.session == nil {
		return nil, fmt.Errorf("cdse: client missing session")
	}
	if req.Config.Collection == "" {
		return nil, ErrMissingProduct
	}
	if req.BBox.IsZero() {
		return nil, ErrEmptyBoundingBox
	}

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("cdse: invalid base URL: %w", err)
	}
	endpoint.Path = joinURLPath(endpoint.Path, productsPath)
	endpoint.RawQuery = encodeQuery(req).Encode()

	page, err := c.fetchPage(ctx, endpoint.String())
	if err != nil {
		return nil, err
	}

	products := append([]model.Product(nil), page.Value...)
	notify(sink, fmt.Sprintf("Found %d products in initial query", len(page.Value)))

	nextLink := page.NextLink
	pageCount := 1
	max := req.MaxResults

	for nextLink != "" && (max <= 0 || len(products) < max) {
		pageCount++
		notify(sink, fmt.Sprintf("Fetching page %d... (total so far: %d)", pageCount, len(products)))

		// Pagination links are self-contained; no parameters are added.
		page, err = c.fetchPage(ctx, nextLink)
		if err != nil {
			return nil, err
		}

		records := page.Value
		if max > 0 {
			if remaining := max - len(products); len(records) > remaining {
				records = records[:remaining]
			}
		}
		products = append(products, records...)
		nextLink = page.NextLink
	}

	return products, nil
}

// Query is the terminal-state variant of Search: failures are reported
// through the sink and resolve to an empty result set. Records accumulated
// before a mid-pagination failure are discarded, so a query always ends in
// exactly one of three states: results, no results, or a failure message.
func (c *Client) Query(ctx context.Context, req QueryRequest, sink ProgressSink) []model.Product {
	products, err := c.Search(ctx, req, sink)
	if err != nil {
		notify(sink, fmt.Sprintf("Error: %s", err))
		return nil
	}
	return products
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (model.ProductList, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return model.ProductList{}, fmt.Errorf("cdse: create request: %w", err)
	}

	resp, err := c.session.Do(req)
	if err != nil {
		return model.ProductList{}, fmt.Errorf("cdse: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.ProductList{}, internalhttp.StatusError(resp)
	}

	var page model.ProductList
	if err := internalhttp.DecodeJSON(resp.Body, &page); err != nil {
		return model.ProductList{}, fmt.Errorf("cdse: decode response: %w", err)
	}
	return page, nil
}

// encodeQuery flattens the request into OData query parameters.
func encodeQuery(req QueryRequest) url.Values {
	q := url.Values{}
	q.Set("$filter", req.Filter())
	q.Set("$orderby", "ContentDate/Start asc")
	q.Set("$top", strconv.Itoa(pageSize(req.MaxResults)))
	q.Set("$expand", "Attributes")
	return q
}

// pageSize returns the $top value: the max-result cap when it is below the
// server page limit, the limit otherwise.
func pageSize(maxResults int) int {
	if maxResults > 0 && maxResults < maxPageSize {
		return maxResults
	}
	return maxPageSize
}

func joinURLPath(basePath string, elems ...string) string {
	parts := make([]string, 0, len(elems)+1)
	trimmedBase := strings.Trim(basePath, "/")
	if trimmedBase != "" {
		parts = append(parts, trimmedBase)
	}
	for _, elem := range elems {
		trimmed := strings.Trim(elem, "/")
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return "/" + path.Join(parts...)
}

// Authenticator applies authentication information to a request.
type Authenticator interface {
	Authenticate(req *http.Request) error
}

// AuthenticatorFunc converts a function into an Authenticator.
type AuthenticatorFunc func(*http.Request) error

// Authenticate applies the function to the request.
func (f AuthenticatorFunc) Authenticate(req *http.Request) error {
	return f(req)
}

// BearerToken authenticates with a bearer token header.
type BearerToken string

// Authenticate applies the bearer token header.
func (b BearerToken) Authenticate(req *http.Request) error {
	if string(b) == "" {
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+string(b))
	return nil
}

// BasicAuth uses HTTP Basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

// Authenticate applies the basic auth header.
func (b BasicAuth) Authenticate(req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// HeaderAuth sets arbitrary headers.
type HeaderAuth map[string]string

// Authenticate applies stored headers to the request.
func (h HeaderAuth) Authenticate(req *http.Request) error {
	for key, value := range h {
		req.Header.Set(key, value)
	}
	return nil
}

// Session mediates authenticated HTTP traffic for catalogue requests.
type Session struct {
	client        *http.Client
	authenticator Authenticator
}

// SessionOption configures a session.
type SessionOption func(*Session)

// WithSessionHTTPClient overrides the HTTP client used by the session.
func WithSessionHTTPClient(hc *http.Client) SessionOption {
	return func(s *Session) {
		s.client = hc
	}
}

// WithSessionAuthenticator sets the session authenticator.
func WithSessionAuthenticator(auth Authenticator) SessionOption {
	return func(s *Session) {
		s.authenticator = auth
	}
}

// NewSession constructs a session with cookie jar and timeout defaults.
func NewSession(opts ...SessionOption) *Session {
	jar, _ := cookiejar.New(nil)
	httpClient := &http.Client{Timeout: requestTimeout, Jar: jar}
	session := &Session{client: httpClient}
	for _, opt := range opts {
		opt(session)
	}
	if session.client == nil {
		session.client = http.DefaultClient
	}
	return session
}

// Do issues an HTTP request with authentication applied.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	if s == nil {
		return nil, fmt.Errorf("cdse: nil session")
	}
	if s.authenticator != nil {
		if err := s.authenticator.Authenticate(req); err != nil {
			return nil, fmt.Errorf("cdse: authenticate request: %w", err)
		}
	}
	return s.client.Do(req)
}
