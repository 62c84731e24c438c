/**
 * Local region recognizer
 *
 * Re-reads a single block with Tesseract instead of the backend OCR service.
 * The source image is downloaded once per URL and cropped to the block box.
 */

package recognizer

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/newwdead/bizcard-annotator/internal/logging"
	"github.com/newwdead/bizcard-annotator/internal/mapper"
)

// ImageSource downloads source images.
type ImageSource interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, error)
}

// Config holds recognizer configuration
type Config struct {
	Images    ImageSource
	Languages []string
	// Padding around the block box, in pixels.
	Padding int
	Logger  *logging.Logger
}

// Tesseract implements mapper.Recognizer with a local Tesseract install.
type Tesseract struct {
	images    ImageSource
	languages []string
	padding   int
	logger    *logging.Logger

	mu       sync.Mutex
	cacheURL string
	cacheImg image.Image
}

// NewTesseract creates a local recognizer
func NewTesseract(cfg *Config) (*Tesseract, error) {
	if cfg.Images == nil {
		return nil, fmt.Errorf("Images is required")
	}
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{"rus", "eng"}
	}
	pad := cfg.Padding
	if pad <= 0 {
		pad = 2
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("tesseract")
	}
	return &Tesseract{images: cfg.Images, languages: langs, padding: pad, logger: logger}, nil
}

func (t *Tesseract) image(ctx context.Context, url string) (image.Image, error) {
	t.mu.Lock()
	if t.cacheURL == url && t.cacheImg != nil {
		img := t.cacheImg
		t.mu.Unlock()
		return img, nil
	}
	t.mu.Unlock()

	data, err := t.images.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	img, format, err := Decode(data)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("Source image decoded", "format", format, "bounds", img.Bounds())

	t.mu.Lock()
	t.cacheURL, t.cacheImg = url, img
	t.mu.Unlock()
	return img, nil
}

// Recognize crops the block region and runs Tesseract on it
func (t *Tesseract) Recognize(ctx context.Context, req *mapper.RecognizeRequest) (*mapper.RecognizeResult, error) {
	if req.ImageURL == "" {
		return nil, fmt.Errorf("document has no source image")
	}
	start := time.Now()

	img, err := t.image(ctx, req.ImageURL)
	if err != nil {
		return nil, err
	}
	region, err := Crop(img, req.Box, t.padding)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("failed to set languages: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := client.SetImageFromBytes(region); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}
	text = strings.Join(strings.Fields(text), " ")

	confidence := wordConfidence(client)
	if confidence == 0 {
		confidence = estimateConfidence(text)
	}

	t.logger.Debug("Region recognized", "contact", req.ContactID, "block_index", req.BlockIndex,
		"chars", len(text), "duration", time.Since(start))

	return &mapper.RecognizeResult{Text: text, Confidence: confidence}, nil
}

// wordConfidence averages Tesseract's per-word confidence, scaled to 0..1.
func wordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100
	}
	return sum / float64(len(boxes))
}

// estimateConfidence guesses a confidence from text shape when Tesseract
// reports none.
func estimateConfidence(text string) float64 {
	if text == "" {
		return 0
	}
	confidence := 0.5

	alnum, total := 0, 0
	for _, r := range text {
		total++
		if r == ' ' || r == '.' || r == ',' || r == '-' || r == '@' || r == '+' {
			alnum++
			continue
		}
		if ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('а' <= r && r <= 'я') || ('А' <= r && r <= 'Я') {
			alnum++
		}
	}
	if ratio := float64(alnum) / float64(total); ratio > 0.9 {
		confidence += 0.2
	} else if ratio > 0.7 {
		confidence += 0.1
	}

	if len(strings.Fields(text)) > 1 {
		confidence += 0.05
	}

	// Cap at reasonable maximum for a heuristic
	if confidence > 0.8 {
		confidence = 0.8
	}
	return confidence
}
