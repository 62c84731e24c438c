package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/newwdead/bizcard-annotator/internal/mapper"
)

// FeedbackClient posts corrected documents to the self-learning collector
type FeedbackClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewFeedbackClient creates a new feedback client
func NewFeedbackClient(baseURL, token string) *FeedbackClient {
	return &FeedbackClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Submit sends one feedback sample
func (c *FeedbackClient) Submit(ctx context.Context, fb *mapper.Feedback) error {
	payload, err := json.Marshal(newFeedbackRequest(fb))
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ocr/feedback", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create feedback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("feedback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("feedback collector returned error status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func newFeedbackRequest(fb *mapper.Feedback) feedbackRequest {
	r := feedbackRequest{
		ContactID:   fb.ContactID,
		Blocks:      toWire(fb.Blocks),
		ImageWidth:  fb.ImageWidth,
		ImageHeight: fb.ImageHeight,
	}
	if !fb.SubmittedAt.IsZero() {
		r.SubmittedAt = fb.SubmittedAt.UTC().Format(time.RFC3339)
	}
	return r
}
