package classifier

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// Decode parses raw image bytes. JPEG, PNG and GIF are registered.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid image data: %w", err)
	}
	return img, nil
}

// Preprocess resizes an image to the backbone input resolution and
// converts it to a normalized NCHW float32 buffer. Pixel values are
// scaled to [0,1], matching how the backbone was exported.
func Preprocess(img image.Image) []float32 {
	resized := resize.Resize(ImageSize, ImageSize, img, resize.Lanczos3)

	plane := ImageSize * ImageSize
	data := make([]float32, Channels*plane)

	for y := 0; y < ImageSize; y++ {
		for x := 0; x < ImageSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()

			idx := y*ImageSize + x
			data[idx] = float32(r) / 65535.0
			data[plane+idx] = float32(g) / 65535.0
			data[2*plane+idx] = float32(b) / 65535.0
		}
	}

	return data
}

// PreprocessBytes decodes and preprocesses in one step.
func PreprocessBytes(data []byte) ([]float32, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Preprocess(img), nil
}
