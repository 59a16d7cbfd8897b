// Package remote holds the submitters that deliver response records to the
// hosted backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chmdznr/fieldsync/pkg/models"
	"github.com/google/uuid"
)

// DefaultTable is the remote table response records are inserted into.
const DefaultTable = "form_responses"

// HTTPError is a non-2xx answer from the REST endpoint
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// RESTSubmitter inserts records through a PostgREST-style endpoint
// (POST {baseURL}/rest/v1/{table}). It never retries; a failed insert stays
// a draft until the next sync.
type RESTSubmitter struct {
	baseURL    string
	apiKey     string
	token      string
	table      string
	httpClient *http.Client
}

// RESTOptions configures a RESTSubmitter
type RESTOptions struct {
	BaseURL string
	APIKey  string
	// Token is the user's access token; the API key is used when empty.
	Token      string
	Table      string
	HTTPClient *http.Client
}

// NewRESTSubmitter creates a submitter for the given endpoint
func NewRESTSubmitter(opts RESTOptions) (*RESTSubmitter, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("remote url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid remote url: %w", err)
	}
	table := strings.TrimSpace(opts.Table)
	if table == "" {
		table = DefaultTable
	}
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		token = strings.TrimSpace(opts.APIKey)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RESTSubmitter{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		token:      token,
		table:      table,
		httpClient: httpClient,
	}, nil
}

// Submit inserts one record.
func (c *RESTSubmitter) Submit(ctx context.Context, payload models.RecordPayload) error {
	body, err := json.Marshal([]models.RecordPayload{payload})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, url.PathEscape(c.table))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payloadBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	var errPayload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(payloadBytes, &errPayload)
	if errPayload.Message == "" {
		errPayload.Message = strings.TrimSpace(string(payloadBytes))
	}
	if errPayload.Message == "" {
		errPayload.Message = http.StatusText(resp.StatusCode)
	}
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Code:       errPayload.Code,
		Message:    errPayload.Message,
	}
}
