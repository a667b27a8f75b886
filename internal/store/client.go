// Package store talks to a remote bill store over its REST API.
package store

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zombor/billed/internal/bill"
)

// Config holds the remote store connection settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is a resty-backed implementation of bill.Store
type Client struct {
	httpClient *resty.Client
	baseURL    *url.URL
}

var _ bill.Store = (*Client)(nil)

// NewClient builds a store client for the API rooted at cfg.BaseURL
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing store url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("store url must be absolute: %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	restyClient := resty.New()
	restyClient.
		SetBaseURL(base.String()).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	return &Client{
		httpClient: restyClient,
		baseURL:    base,
	}, nil
}

// apiError mirrors the {"error": "..."} body of the bill API
type apiError struct {
	Error string `json:"error"`
}

func responseError(op string, resp *resty.Response, apiErr *apiError) error {
	message := ""
	if apiErr != nil {
		message = apiErr.Error
	}
	if message == "" {
		message = strings.TrimSpace(string(resp.Body()))
	}
	return fmt.Errorf("%s: store api error: code=%d, message=%s", op, resp.StatusCode(), message)
}

// resolve turns API-relative file URLs into absolute ones
func (c *Client) resolve(ref *string) *string {
	if ref == nil || *ref == "" {
		return ref
	}
	u, err := url.Parse(*ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	abs := c.baseURL.ResolveReference(u).String()
	return &abs
}

// List fetches every bill
func (c *Client) List(ctx context.Context) ([]*bill.Bill, error) {
	var bills []*bill.Bill
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&bills).
		SetError(apiErr).
		Get("/api/bills")
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, responseError("list bills", resp, apiErr)
	}

	for _, b := range bills {
		b.FileURL = c.resolve(b.FileURL)
	}
	if bills == nil {
		bills = []*bill.Bill{}
	}
	return bills, nil
}

// Create uploads the staged receipt as multipart file and email fields
func (c *Client) Create(ctx context.Context, upload *bill.Upload) (*bill.UploadResult, error) {
	if upload == nil {
		return nil, fmt.Errorf("create bill: no upload")
	}

	contentType := upload.ContentType
	if contentType == "" {
		contentType = bill.ContentTypeFor(upload.FileName)
	}

	result := new(bill.UploadResult)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetMultipartField("file", upload.FileName, contentType, bytes.NewReader(upload.Data)).
		SetMultipartFormData(map[string]string{"email": upload.Email}).
		SetResult(result).
		SetError(apiErr).
		Post("/api/bills")
	if err != nil {
		return nil, fmt.Errorf("create bill: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, responseError("create bill", resp, apiErr)
	}

	if resolved := c.resolve(&result.FileURL); resolved != nil {
		result.FileURL = *resolved
	}
	return result, nil
}

// Update sends the bill as JSON under key
func (c *Client) Update(ctx context.Context, key string, b *bill.Bill) error {
	if key == "" {
		return fmt.Errorf("update bill: key required")
	}
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(b).
		SetError(apiErr).
		Patch("/api/bills/" + url.PathEscape(key))
	if err != nil {
		return fmt.Errorf("update bill: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return responseError("update bill", resp, apiErr)
	}
	return nil
}
