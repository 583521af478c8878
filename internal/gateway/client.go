package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// MaxResponseBody bounds a single store response.
const MaxResponseBody = 8 << 20

// ClientOptions configures an HTTP gateway client.
type ClientOptions struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// Client talks to the reference store over HTTP.
type Client struct {
	base  string
	token string
	http  *http.Client
	// reads coalesces concurrent fetches of the same resource data.
	reads singleflight.Group
}

var _ Gateway = (*Client)(nil)

// NewClient constructs a client bound to one store base url.
func NewClient(opts ClientOptions) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("gateway: base url required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("gateway: bad base url: %w", err)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{base: base, token: strings.TrimSpace(opts.Token), http: hc}, nil
}

// BaseURL is the store root used to build data urls.
func (c *Client) BaseURL() string {
	return c.base
}

type createResponse struct {
	ID string `json:"id"`
}

type updateBody struct {
	Data        string            `json:"data"`
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Permissions []Permission      `json:"permissions,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

type attributesResponse struct {
	Attributes []Attribute `json:"attributes"`
}

func (c *Client) CreateResource(ctx context.Context, req CreateRequest) (string, error) {
	if req.Category == "" {
		req.Category = req.Metadata.Category
	}
	var out createResponse
	if err := c.do(ctx, http.MethodPost, "/resources", nil, req, &out); err != nil {
		return "", err
	}
	if !ValidID(out.ID) {
		return "", fmt.Errorf("%w: store returned id %q", ErrRemote, out.ID)
	}
	log.Debug().Str("id", out.ID).Str("category", req.Category).Msg("gateway.Client.CreateResource")
	return out.ID, nil
}

func (c *Client) UpdateResource(ctx context.Context, req UpdateRequest) error {
	if !ValidID(req.ResourceID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, req.ResourceID)
	}
	body := updateBody{
		Data:        req.Value,
		Permissions: req.Permissions,
		Attributes:  req.Options,
	}
	if req.Metadata != nil {
		body.Name = &req.Metadata.Name
		body.Description = &req.Metadata.Description
	}
	return c.do(ctx, http.MethodPut, "/resources/"+req.ResourceID, nil, body, nil)
}

func (c *Client) GetResource(ctx context.Context, id string) (string, error) {
	if !ValidID(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	v, err, shared := c.reads.Do("data/"+id, func() (interface{}, error) {
		var raw []byte
		if err := c.do(ctx, http.MethodGet, "/data/"+id, nil, nil, &raw); err != nil {
			return "", err
		}
		return string(raw), nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		log.Trace().Str("id", id).Msg("gateway.Client.GetResource shared")
	}
	return v.(string), nil
}

func (c *Client) DeleteResource(ctx context.Context, id string, opts DeleteOptions) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	query := url.Values{}
	for k, v := range opts {
		query.Set(k, v)
	}
	return c.do(ctx, http.MethodDelete, "/resources/"+id, query, nil, nil)
}

func (c *Client) GetResourceAttributes(ctx context.Context, id string) ([]Attribute, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	var out attributesResponse
	if err := c.do(ctx, http.MethodGet, "/resources/"+id+"/attributes", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Attributes, nil
}

func (c *Client) UpdateResourceAttribute(ctx context.Context, id string, attr Attribute) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if strings.TrimSpace(attr.Name) == "" {
		return fmt.Errorf("gateway: attribute name required")
	}
	if attr.Type == "" {
		attr.Type = AttributeString
	}
	path := "/resources/" + id + "/attributes/" + url.PathEscape(attr.Name)
	return c.do(ctx, http.MethodPut, path, nil, attr, nil)
}

func (c *Client) ListResourcesByCategory(ctx context.Context, category, search string, page Page) (ResourceList, error) {
	query := url.Values{}
	if search != "" {
		query.Set("search", search)
	}
	query.Set("start", strconv.Itoa(page.Start))
	if page.Limit > 0 {
		query.Set("limit", strconv.Itoa(page.Limit))
	}
	var out ResourceList
	path := "/categories/" + url.PathEscape(category) + "/resources"
	if err := c.do(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return ResourceList{}, err
	}
	if out.Results == nil {
		out.Results = []Metadata{}
	}
	return out, nil
}

// do issues one request. A *[]byte out receives the raw body; any other
// non-nil out is JSON-decoded.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrRemote, method, path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBody+1))
	if err != nil {
		return fmt.Errorf("%w: read %s %s: %v", ErrRemote, method, path, err)
	}
	if len(payload) > MaxResponseBody {
		return fmt.Errorf("%w: %s %s: response exceeds %d bytes", ErrRemote, method, path, MaxResponseBody)
	}
	if err := statusError(resp.StatusCode, payload); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	switch dst := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*dst = payload
		return nil
	default:
		if err := json.Unmarshal(payload, dst); err != nil {
			return fmt.Errorf("%w: decode %s %s: %v", ErrRemote, method, path, err)
		}
		return nil
	}
}

func statusError(code int, payload []byte) error {
	if code < 400 {
		return nil
	}
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(payload, &body)
	msg := strings.TrimSpace(body.Error)
	if msg == "" {
		msg = http.StatusText(code)
	}
	switch code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRemote, code, msg)
	}
}
