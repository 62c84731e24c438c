package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxImageSize caps source image downloads.
const maxImageSize = 32 << 20

// ImageFetcher downloads business-card source images
type ImageFetcher struct {
	token      string
	httpClient *http.Client
}

// NewImageFetcher creates a fetcher that sends token as a bearer credential
func NewImageFetcher(token string) *ImageFetcher {
	return &ImageFetcher{
		token: token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Fetch returns the raw image bytes at imageURL
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxImageSize {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageSize)
	}
	return data, nil
}
