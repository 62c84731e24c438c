/**
 * OCR Editor Backend Client
 *
 * HTTP client for the contact OCR endpoints: block load, single-region
 * re-recognition, batch save, reprocess and the field catalog.
 * The bearer token comes from configuration, never from ambient state.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newwdead/bizcard-annotator/internal/block"
	"github.com/newwdead/bizcard-annotator/internal/fields"
	"github.com/newwdead/bizcard-annotator/internal/mapper"
)

// BackendClient handles communication with the contacts API
type BackendClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// BackendConfig holds client configuration
type BackendConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// NewBackendClient creates a new backend client
func NewBackendClient(cfg *BackendConfig) *BackendClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BackendClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned error status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// HealthCheck verifies the backend is available
func (c *BackendClient) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// LoadDocument fetches the OCR blocks of a contact
func (c *BackendClient) LoadDocument(ctx context.Context, contactID string) (*block.Document, error) {
	var resp DocumentResponse
	if err := c.do(ctx, http.MethodGet, contactPath(contactID, "/ocr-blocks"), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to load OCR blocks: %w", err)
	}
	log.Printf("[Contact %s] Loaded %d OCR blocks (%gx%g)", contactID, len(resp.Lines), resp.ImageWidth, resp.ImageHeight)
	return resp.ToDocument(contactID), nil
}

// Reprocess discards the stored blocks and runs OCR again
func (c *BackendClient) Reprocess(ctx context.Context, contactID string) (*block.Document, error) {
	var resp DocumentResponse
	if err := c.do(ctx, http.MethodPost, contactPath(contactID, "/ocr-blocks/reprocess"), struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("failed to reprocess OCR: %w", err)
	}
	log.Printf("[Contact %s] Reprocessed: %d OCR blocks", contactID, len(resp.Lines))
	return resp.ToDocument(contactID), nil
}

// FieldCatalog fetches the assignable contact fields
func (c *BackendClient) FieldCatalog(ctx context.Context) ([]fields.Field, error) {
	var list []fields.Field
	if err := c.do(ctx, http.MethodGet, "/api/contacts/fields", nil, &list); err != nil {
		return nil, fmt.Errorf("failed to load field catalog: %w", err)
	}
	return list, nil
}

// Recognize re-runs OCR on one region
func (c *BackendClient) Recognize(ctx context.Context, req *mapper.RecognizeRequest) (*mapper.RecognizeResult, error) {
	var result mapper.RecognizeResult
	if err := c.do(ctx, http.MethodPost, contactPath(req.ContactID, "/ocr-blocks/rerecognize"), req, &result); err != nil {
		return nil, fmt.Errorf("failed to re-recognize block %d: %w", req.BlockIndex, err)
	}
	return &result, nil
}

// SaveMappings stores the full block list and returns the updated contact fields
func (c *BackendClient) SaveMappings(ctx context.Context, req *mapper.SaveRequest) ([]string, error) {
	body := saveMappingsRequest{
		Blocks: toWire(req.Blocks),
		Fields: req.Fields,
	}
	var resp saveMappingsResponse
	if err := c.do(ctx, http.MethodPut, contactPath(req.ContactID, "/ocr-blocks"), body, &resp); err != nil {
		return nil, fmt.Errorf("failed to save OCR blocks: %w", err)
	}
	return resp.UpdatedFields, nil
}

func contactPath(contactID, suffix string) string {
	return "/api/contacts/" + url.PathEscape(contactID) + suffix
}

// do sends an optional JSON body and decodes a JSON response into out.
func (c *BackendClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
