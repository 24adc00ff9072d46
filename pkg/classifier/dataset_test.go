package classifier

import (
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func TestScaffoldDataset(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "waste_dataset")

	if err := ScaffoldDataset(dir); err != nil {
		t.Fatalf("ScaffoldDataset: %v", err)
	}

	for _, class := range ClassNames {
		info, err := os.Stat(filepath.Join(dir, class))
		if err != nil {
			t.Fatalf("missing class directory %q: %v", class, err)
		}
		if !info.IsDir() {
			t.Fatalf("%q is not a directory", class)
		}
	}
}

func TestDatasetStats(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(3))

	if err := WriteSyntheticImages(dir, 5, rng); err != nil {
		t.Fatalf("WriteSyntheticImages: %v", err)
	}

	counts, total, err := DatasetStats(dir)
	if err != nil {
		t.Fatalf("DatasetStats: %v", err)
	}

	if total != 5*len(ClassNames) {
		t.Fatalf("total = %d, want %d", total, 5*len(ClassNames))
	}
	for _, class := range ClassNames {
		if counts[class] != 5 {
			t.Fatalf("count[%q] = %d, want 5", class, counts[class])
		}
	}
}

func TestLoadDirectorySkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(4))

	if err := WriteSyntheticImages(dir, 2, rng); err != nil {
		t.Fatalf("WriteSyntheticImages: %v", err)
	}

	// Corrupt files and non-image clutter must not break loading.
	junk := filepath.Join(dir, ClassNames[0], "broken.jpg")
	if err := os.WriteFile(junk, []byte("not a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	notes := filepath.Join(dir, ClassNames[1], "README.txt")
	if err := os.WriteFile(notes, []byte("notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	samples, err := LoadDirectory(dir, false, rng)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}

	if len(samples) != 2*len(ClassNames) {
		t.Fatalf("loaded %d samples, want %d", len(samples), 2*len(ClassNames))
	}
	for _, sample := range samples {
		if len(sample.Pixels) != Channels*ImageSize*ImageSize {
			t.Fatalf("sample buffer length = %d", len(sample.Pixels))
		}
		if sample.Label < 0 || sample.Label >= len(ClassNames) {
			t.Fatalf("sample label out of range: %d", sample.Label)
		}
	}
}

func TestLoadDirectoryAugmentation(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(5))

	if err := WriteSyntheticImages(dir, 2, rng); err != nil {
		t.Fatalf("WriteSyntheticImages: %v", err)
	}

	plain, err := LoadDirectory(dir, false, rand.New(rand.NewSource(6)))
	if err != nil {
		t.Fatal(err)
	}
	augmented, err := LoadDirectory(dir, true, rand.New(rand.NewSource(6)))
	if err != nil {
		t.Fatal(err)
	}

	if len(augmented) <= len(plain) {
		t.Fatalf("augmentation produced %d samples from %d originals", len(augmented), len(plain))
	}
}

func TestSyntheticSamplesDistinctByClass(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	samples := SyntheticSamples(3, rng)

	if len(samples) != 3*len(ClassNames) {
		t.Fatalf("generated %d samples, want %d", len(samples), 3*len(ClassNames))
	}

	seen := make(map[int]int)
	for _, sample := range samples {
		seen[sample.Label]++
		for i, v := range sample.Pixels {
			if v < 0 || v > 1 {
				t.Fatalf("pixel %d = %v, outside [0,1]", i, v)
			}
		}
	}
	for label := range ClassNames {
		if seen[label] != 3 {
			t.Fatalf("class %d has %d samples, want 3", label, seen[label])
		}
	}
}

func TestFlipHorizontal(t *testing.T) {
	img := solidImage(4, 2, color.NRGBA{A: 255})
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})

	flipped := flipHorizontal(img)

	r, _, _, _ := flipped.At(3, 0).RGBA()
	if r < 0xff00 {
		t.Fatalf("left edge pixel did not move to the right edge, r = %d", r)
	}
	r, _, _, _ = flipped.At(0, 0).RGBA()
	if r > 0x00ff {
		t.Fatalf("left edge pixel still set after flip, r = %d", r)
	}
}

func TestFlipHorizontalNonZeroOrigin(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 5, 14, 7))
	for y := 5; y < 7; y++ {
		for x := 10; x < 14; x++ {
			src.Set(x, y, color.NRGBA{A: 255})
		}
	}
	src.Set(10, 5, color.NRGBA{R: 255, A: 255})

	flipped := flipHorizontal(src)

	if got := flipped.Bounds(); got != image.Rect(0, 0, 4, 2) {
		t.Fatalf("flipped bounds = %v, want zero-origin 4x2", got)
	}

	r, _, _, a := flipped.At(3, 0).RGBA()
	if r < 0xff00 {
		t.Fatalf("marked pixel did not mirror to the right edge, r = %d", r)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			if _, _, _, a = flipped.At(x, y).RGBA(); a < 0xff00 {
				t.Fatalf("pixel (%d,%d) was not written, alpha = %d", x, y, a)
			}
		}
	}
}
