package classifier

import (
	"fmt"
	"image"
	"image/jpeg"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// Sample is one preprocessed training example.
type Sample struct {
	Pixels []float32
	Label  int
}

// classColors bias the synthetic noise toward a per-class tint so the
// fallback dataset is at least linearly separable.
var classColors = map[string][3]uint8{
	"Plastic":     {59, 130, 246},
	"Chemical":    {239, 68, 68},
	"Oil":         {245, 158, 11},
	"Mixed Waste": {139, 92, 246},
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// ScaffoldDataset creates the per-class directory layout under dir.
func ScaffoldDataset(dir string) error {
	for _, class := range ClassNames {
		if err := os.MkdirAll(filepath.Join(dir, class), 0o755); err != nil {
			return fmt.Errorf("failed to create dataset directory for %s: %w", class, err)
		}
	}
	return nil
}

// DatasetStats counts images per class under dir.
func DatasetStats(dir string) (map[string]int, int, error) {
	counts := make(map[string]int, len(ClassNames))
	total := 0

	for _, class := range ClassNames {
		entries, err := os.ReadDir(filepath.Join(dir, class))
		if err != nil {
			if os.IsNotExist(err) {
				counts[class] = 0
				continue
			}
			return nil, 0, err
		}

		n := 0
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				n++
			}
		}
		counts[class] = n
		total += n
	}

	return counts, total, nil
}

// LoadDirectory reads a class-per-directory dataset and preprocesses every
// image. With augment set, each image also contributes a mirrored copy and
// a random-crop copy.
func LoadDirectory(dir string, augment bool, rng *rand.Rand) ([]Sample, error) {
	var samples []Sample

	for label, class := range ClassNames {
		classDir := filepath.Join(dir, class)
		entries, err := os.ReadDir(classDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		for _, entry := range entries {
			if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				continue
			}

			data, err := os.ReadFile(filepath.Join(classDir, entry.Name()))
			if err != nil {
				return nil, err
			}

			img, err := Decode(data)
			if err != nil {
				// skip corrupt files instead of failing the whole run
				continue
			}

			variants := []image.Image{img}
			if augment {
				variants = append(variants, flipHorizontal(img), randomCrop(img, rng))
			}
			for _, v := range variants {
				samples = append(samples, Sample{Pixels: Preprocess(v), Label: label})
			}
		}
	}

	return samples, nil
}

// SyntheticSamples generates perClass color-biased noise samples for each
// class, already in preprocessed NCHW form.
func SyntheticSamples(perClass int, rng *rand.Rand) []Sample {
	plane := ImageSize * ImageSize
	samples := make([]Sample, 0, perClass*len(ClassNames))

	for label, class := range ClassNames {
		color := classColors[class]
		for n := 0; n < perClass; n++ {
			pixels := make([]float32, Channels*plane)
			for c := 0; c < Channels; c++ {
				bias := float32(color[c]) / 255.0
				for i := 0; i < plane; i++ {
					pixels[c*plane+i] = 0.7*rng.Float32() + 0.3*bias
				}
			}
			samples = append(samples, Sample{Pixels: pixels, Label: label})
		}
	}

	return samples
}

// WriteSyntheticImages materializes color-biased noise JPEGs on disk so a
// sample dataset can be inspected and re-used across runs.
func WriteSyntheticImages(dir string, perClass int, rng *rand.Rand) error {
	if err := ScaffoldDataset(dir); err != nil {
		return err
	}

	for _, class := range ClassNames {
		color := classColors[class]
		classDir := filepath.Join(dir, class)

		for n := 0; n < perClass; n++ {
			img := image.NewNRGBA(image.Rect(0, 0, ImageSize, ImageSize))
			for y := 0; y < ImageSize; y++ {
				for x := 0; x < ImageSize; x++ {
					idx := img.PixOffset(x, y)
					for c := 0; c < 3; c++ {
						noise := float64(rng.Intn(256))
						img.Pix[idx+c] = uint8(clamp255(noise*0.7 + float64(color[c])*0.3))
					}
					img.Pix[idx+3] = 255
				}
			}

			path := filepath.Join(classDir, fmt.Sprintf("synthetic_%d.jpg", n+1))
			if err := writeJPEG(path, img); err != nil {
				return err
			}
		}
	}

	return nil
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return jpeg.Encode(f, img, &jpeg.Options{Quality: 85})
}

func flipHorizontal(img image.Image) image.Image {
	bounds := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.Set(bounds.Max.X-1-x, y-bounds.Min.Y, img.At(x, y))
		}
	}
	return out
}

// randomCrop takes an 85-100% crop and scales it back to the original
// bounds with a Catmull-Rom kernel.
func randomCrop(img image.Image, rng *rand.Rand) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	scale := 0.85 + rng.Float64()*0.15
	cw := int(float64(w) * scale)
	ch := int(float64(h) * scale)
	if cw < 1 || ch < 1 {
		return img
	}

	ox := bounds.Min.X + rng.Intn(w-cw+1)
	oy := bounds.Min.Y + rng.Intn(h-ch+1)
	crop := image.Rect(ox, oy, ox+cw, oy+ch)

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(out, out.Rect, img, crop, xdraw.Over, nil)
	return out
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
