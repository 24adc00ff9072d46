package classifier

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPreprocessShapeAndRange(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"smaller", 64, 48},
		{"exact", ImageSize, ImageSize},
		{"larger", 640, 480},
		{"portrait", 300, 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := solidImage(tt.w, tt.h, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
			data := Preprocess(img)

			if len(data) != Channels*ImageSize*ImageSize {
				t.Fatalf("buffer length = %d, want %d", len(data), Channels*ImageSize*ImageSize)
			}

			for i, v := range data {
				if v < 0 || v > 1 {
					t.Fatalf("pixel %d = %v, outside [0,1]", i, v)
				}
			}
		})
	}
}

func TestPreprocessChannelOrder(t *testing.T) {
	// A pure red image must land entirely in the first plane.
	img := solidImage(32, 32, color.NRGBA{R: 255, A: 255})
	data := Preprocess(img)

	plane := ImageSize * ImageSize
	if data[0] < 0.99 {
		t.Fatalf("red plane starts at %v, want ~1", data[0])
	}
	if data[plane] > 0.01 || data[2*plane] > 0.01 {
		t.Fatalf("green/blue planes not empty: %v, %v", data[plane], data[2*plane])
	}
}

func TestPreprocessBytesFormats(t *testing.T) {
	img := solidImage(100, 100, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	tests := []struct {
		name string
		data []byte
	}{
		{"png", encodePNG(t, img)},
		{"jpeg", encodeJPEG(t, img)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := PreprocessBytes(tt.data)
			if err != nil {
				t.Fatalf("PreprocessBytes: %v", err)
			}
			if len(data) != Channels*ImageSize*ImageSize {
				t.Fatalf("buffer length = %d", len(data))
			}
		})
	}
}

func TestPreprocessBytesRejectsJunk(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("definitely not an image")},
		{"truncated", encodePNG(t, solidImage(10, 10, color.Black))[:8]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := PreprocessBytes(tt.data); err == nil {
				t.Fatal("PreprocessBytes accepted junk input")
			}
		})
	}
}
