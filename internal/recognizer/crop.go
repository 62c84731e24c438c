package recognizer

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/newwdead/bizcard-annotator/internal/geometry"
)

// Decode reads any registered image format.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// regionRect converts an image-space box to integer pixel bounds, grown by
// pad on each side and clipped to bounds.
func regionRect(box geometry.Box, pad int, bounds image.Rectangle) image.Rectangle {
	r := image.Rect(
		int(math.Floor(box.X))-pad,
		int(math.Floor(box.Y))-pad,
		int(math.Ceil(box.Right()))+pad,
		int(math.Ceil(box.Bottom()))+pad,
	).Add(bounds.Min)
	return r.Intersect(bounds)
}

// Crop cuts box out of img and returns it as PNG bytes.
func Crop(img image.Image, box geometry.Box, pad int) ([]byte, error) {
	r := regionRect(box, pad, img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("region %+v lies outside the image %v", box, img.Bounds())
	}

	var region image.Image
	if si, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		region = si.SubImage(r)
	} else {
		rgba := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, r.Min, draw.Src)
		region = rgba
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, region); err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}
	return buf.Bytes(), nil
}
