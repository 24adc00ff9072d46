package main

import (
	"EcosnapAI/pkg/classifier"
	"EcosnapAI/pkg/log"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Dataset maintenance tool: scaffolds the class directory layout,
// generates synthetic fallback images, imports labeled source datasets
// through the class mapping and prints per-class counts.
func main() {
	logger := log.NewLogger()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	command := os.Args[1]
	flags := flag.NewFlagSet(command, flag.ExitOnError)
	dataDir := flags.String("data", "data/waste_dataset", "dataset root directory")
	perClass := flags.Int("samples", 100, "synthetic images per class")
	seed := flags.Int64("seed", time.Now().UnixNano(), "random seed")
	srcDir := flags.String("src", "", "labeled source dataset to import")
	mappingPath := flags.String("mapping", "", "class mapping YAML, defaults to the built-in TACO mapping")

	if err := flags.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	var err error
	switch command {
	case "scaffold":
		err = classifier.ScaffoldDataset(*dataDir)
	case "synth":
		rng := rand.New(rand.NewSource(*seed))
		err = classifier.WriteSyntheticImages(*dataDir, *perClass, rng)
	case "import":
		err = importDataset(logger, *srcDir, *dataDir, *mappingPath)
	case "stats":
		err = printStats(*dataDir)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Fatalf("%s failed: %v", command, err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dataset <scaffold|synth|import|stats> [flags]")
}

func printStats(dataDir string) error {
	counts, total, err := classifier.DatasetStats(dataDir)
	if err != nil {
		return err
	}

	for _, class := range classifier.ClassNames {
		percent := 0.0
		if total > 0 {
			percent = 100 * float64(counts[class]) / float64(total)
		}
		fmt.Printf("%-12s %5d  %5.1f%%\n", class, counts[class], percent)
	}
	fmt.Printf("%-12s %5d\n", "total", total)
	return nil
}

// importDataset copies images from a labeled source tree (one directory
// per source label, TACO-style) into the training layout, resolving each
// label through the class mapping.
func importDataset(logger *logrus.Logger, srcDir, dataDir, mappingPath string) error {
	if srcDir == "" {
		return fmt.Errorf("import requires -src")
	}

	mapping := classifier.DefaultClassMapping()
	if mappingPath != "" {
		loaded, err := classifier.LoadClassMapping(mappingPath)
		if err != nil {
			return err
		}
		mapping = loaded
	}

	if err := classifier.ScaffoldDataset(dataDir); err != nil {
		return err
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}

	imported := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		class := mapping.Resolve(entry.Name())
		files, err := os.ReadDir(filepath.Join(srcDir, entry.Name()))
		if err != nil {
			return err
		}

		for _, file := range files {
			if file.IsDir() {
				continue
			}

			src := filepath.Join(srcDir, entry.Name(), file.Name())
			dst := filepath.Join(dataDir, class, fmt.Sprintf("%s_%s", strings.ToLower(entry.Name()), file.Name()))
			if err := copyFile(src, dst); err != nil {
				return err
			}
			imported++
		}

		logger.WithFields(log.Fields{
			"label": entry.Name(),
			"class": class,
			"files": len(files),
		}).Info("Imported source label")
	}

	logger.Infof("Imported %d images into %s", imported, dataDir)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
