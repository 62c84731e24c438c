package recognizer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/newwdead/bizcard-annotator/internal/geometry"
	"github.com/newwdead/bizcard-annotator/internal/mapper"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestCrop(t *testing.T) {
	img, format, err := Decode(testPNG(t, 200, 100))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if format != "png" {
		t.Fatalf("format = %q", format)
	}

	out, err := Crop(img, geometry.Box{X: 10.5, Y: 20, Width: 50, Height: 10}, 2)
	if err != nil {
		t.Fatalf("Crop() error = %v", err)
	}
	region, _, err := Decode(out)
	if err != nil {
		t.Fatalf("decode crop: %v", err)
	}
	if b := region.Bounds(); b.Dx() != 55 || b.Dy() != 14 {
		t.Fatalf("crop size = %dx%d, want 55x14", b.Dx(), b.Dy())
	}
}

func TestCropClipsToImage(t *testing.T) {
	img, _, _ := Decode(testPNG(t, 100, 50))
	out, err := Crop(img, geometry.Box{X: 90, Y: 40, Width: 50, Height: 50}, 2)
	if err != nil {
		t.Fatalf("Crop() error = %v", err)
	}
	region, _, _ := Decode(out)
	if b := region.Bounds(); b.Dx() != 12 || b.Dy() != 12 {
		t.Fatalf("crop size = %dx%d, want 12x12", b.Dx(), b.Dy())
	}

	if _, err := Crop(img, geometry.Box{X: 500, Y: 500, Width: 5, Height: 5}, 0); err == nil {
		t.Fatal("crop outside the image succeeded")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, _, err := Decode([]byte("not an image")); err == nil {
		t.Fatal("garbage decoded")
	}
}

type fakeSource struct {
	data  []byte
	calls int
}

func (f *fakeSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls++
	return f.data, nil
}

func TestImageIsCachedPerURL(t *testing.T) {
	src := &fakeSource{data: testPNG(t, 20, 20)}
	tess, err := NewTesseract(&Config{Images: src})
	if err != nil {
		t.Fatalf("NewTesseract() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := tess.image(context.Background(), "http://img/a.png"); err != nil {
			t.Fatalf("image() error = %v", err)
		}
	}
	if src.calls != 1 {
		t.Fatalf("fetched %d times, want 1", src.calls)
	}
}

func TestRecognizeRequiresImageURL(t *testing.T) {
	tess, _ := NewTesseract(&Config{Images: &fakeSource{}})
	if _, err := tess.Recognize(context.Background(), &mapper.RecognizeRequest{}); err == nil {
		t.Fatal("request without image URL accepted")
	}
}

func TestEstimateConfidence(t *testing.T) {
	if estimateConfidence("") != 0 {
		t.Error("empty text has confidence")
	}
	clean := estimateConfidence("Ivan Petrov")
	noisy := estimateConfidence("#$%^&*")
	if clean <= noisy || clean > 0.8 {
		t.Errorf("clean=%v noisy=%v", clean, noisy)
	}
}
