package artifact

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	// BootstrapEntry is the provided.al2 entry point name
	BootstrapEntry = "bootstrap"

	// TestBinaryEntry is where the runner expects the test binary
	TestBinaryEntry = "testmain"

	// InlineCodeLimit is the largest zip the provider accepts inline;
	// anything bigger goes through the artifact bucket
	InlineCodeLimit = 50 * 1024 * 1024
)

// Package assembles the deployment zip: the runner bootstrap and the test
// binary, both marked executable in the zip header (the runtime refuses a
// bootstrap without the exec bit).
func Package(zipPath, bootstrapPath, testBinPath string) error {
	if err := os.MkdirAll(filepath.Dir(zipPath), 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create artifact %s: %w", zipPath, err)
	}
	defer out.Close()

	w := zip.NewWriter(out)

	entries := []struct {
		name string
		src  string
	}{
		{BootstrapEntry, bootstrapPath},
		{TestBinaryEntry, testBinPath},
	}

	for _, e := range entries {
		if err := addExecutable(w, e.name, e.src); err != nil {
			w.Close()
			return err
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize artifact: %w", err)
	}

	return nil
}

// addExecutable writes one file into the archive with mode 0755
func addExecutable(w *zip.Writer, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	header := &zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	}
	header.SetMode(0755)
	header.Modified = info.ModTime()

	entry, err := w.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", name, err)
	}

	if _, err := io.Copy(entry, f); err != nil {
		return fmt.Errorf("failed to write zip entry %s: %w", name, err)
	}

	return nil
}

// Read loads the finished artifact and reports whether it is small enough
// for inline upload
func Read(zipPath string) (data []byte, inline bool, err error) {
	data, err = os.ReadFile(zipPath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, len(data) <= InlineCodeLimit, nil
}
