// Package httpstore talks to a remote store over JSON/HTTP. Every request
// carries the owning-user id in the X-User-ID header.
package httpstore

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/domain"
	"github.com/spigell/listing-scout/internal/store"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	userAgent       = "spigell/listing-scout"

	// UserHeader scopes every request to one owning user.
	UserHeader = "X-User-ID"

	APIPrefix = "/api/v1"
)

type Client struct {
	baseURL    string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
}

var _ store.Store = (*Client)(nil)

// ItemResponse is the envelope used by list endpoints.
type ItemResponse struct {
	Items []Item `json:"items"`
}

type Item interface{}

func New(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: userAgent,
	}
}

// FindCompany and FindApplication never query with an empty url: the list
// endpoints treat a missing filter as "everything".
func (c *Client) FindCompany(ctx context.Context, userID, companyURL string) (*domain.Company, error) {
	if strings.TrimSpace(companyURL) == "" {
		return nil, store.ErrNotFound
	}

	var companies []domain.Company
	if err := c.getItems(ctx, userID, "/companies", url.Values{"url": {companyURL}}, &companies); err != nil {
		return nil, err
	}
	if len(companies) == 0 {
		return nil, store.ErrNotFound
	}
	return &companies[0], nil
}

func (c *Client) CreateCompany(ctx context.Context, userID string, company *domain.Company) (*domain.Company, error) {
	var created domain.Company
	if err := c.send(ctx, http.MethodPost, userID, "/companies", company, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) FindApplication(ctx context.Context, userID, jobURL string) (*domain.Application, error) {
	if strings.TrimSpace(jobURL) == "" {
		return nil, store.ErrNotFound
	}

	var apps []domain.Application
	if err := c.getItems(ctx, userID, "/applications", url.Values{"job_url": {jobURL}}, &apps); err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, store.ErrNotFound
	}
	return &apps[0], nil
}

func (c *Client) CreateApplication(ctx context.Context, userID string, app *domain.Application) (*domain.Application, error) {
	var created domain.Application
	if err := c.send(ctx, http.MethodPost, userID, "/applications", app, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) ListApplications(ctx context.Context, userID string) ([]domain.Application, error) {
	var apps []domain.Application
	if err := c.getItems(ctx, userID, "/applications", nil, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// FindEmbedding and SaveEmbedding are not user scoped but still send the
// header since the server may require it.
func (c *Client) FindEmbedding(ctx context.Context, modelID, contentHash string) (*domain.Embedding, error) {
	var entry domain.Embedding
	q := url.Values{"model": {modelID}, "hash": {contentHash}}
	if err := c.getJSON(ctx, "", "/embeddings", q, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Client) SaveEmbedding(ctx context.Context, entry *domain.Embedding) error {
	return c.send(ctx, http.MethodPut, "", "/embeddings", entry, nil)
}

// getItems fetches a list envelope and decodes every item into target.
func (c *Client) getItems(ctx context.Context, userID, path string, q url.Values, target any) error {
	var response *ItemResponse
	if err := c.getJSON(ctx, userID, path, q, &response); err != nil {
		return err
	}
	if response == nil {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     target,
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	if err := decoder.Decode(response.Items); err != nil {
		return fmt.Errorf("decode %s items: %w", path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, userID, path string, q url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+APIPrefix+path, nil)
	if err != nil {
		return err
	}

	req = c.setHeaders(req, userID)
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}

	return c.do(req, http.StatusOK, target)
}

func (c *Client) send(ctx context.Context, method, userID, path string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+APIPrefix+path, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req = c.setHeaders(req, userID)
	req.Header.Set("Content-Type", contentType)

	expected := http.StatusOK
	if method == http.MethodPost {
		expected = http.StatusCreated
	}

	return c.do(req, expected, target)
}

func (c *Client) do(req *http.Request, expected int, target any) error {
	c.logger.Debug("make request", zap.String("method", req.Method), zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if resp.StatusCode != expected {
		return statusError(resp.StatusCode, resp.Status, data)
	}

	if target == nil || len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, target)
}

func (c *Client) setHeaders(req *http.Request, userID string) *http.Request {
	if userID = strings.TrimSpace(userID); userID != "" {
		req.Header.Set(UserHeader, userID)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

func statusError(code int, status string, body []byte) error {
	detail := strings.TrimSpace(string(body))
	switch code {
	case http.StatusNotFound:
		return store.ErrNotFound
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", store.ErrConflict, detail)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", store.ErrUnauthorized, detail)
	default:
		return fmt.Errorf("bad status: %s: %s", status, detail)
	}
}
