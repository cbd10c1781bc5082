package artifact

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmlat/InfoCoffee-sub001/internal/models"
)

// WriteProducts writes products.json into dir and returns its path.
func WriteProducts(dir string, products []models.Product) (string, error) {
	return writeAtomic(dir, ProductsFile, func(w io.Writer) error {
		return EncodeProducts(w, products)
	})
}

// WriteSales writes sales-<year>.json into dir and returns its path. Entries
// outside year are rejected.
func WriteSales(dir string, year int, entries []DayEntry) (string, error) {
	for _, e := range entries {
		t, err := parseDate(e.Date)
		if err != nil {
			return "", err
		}
		if t.Year() != year {
			return "", fmt.Errorf("entry %s does not belong to %d", e.Date, year)
		}
	}
	return writeAtomic(dir, SalesFile(year), func(w io.Writer) error {
		return EncodeSales(w, entries)
	})
}

// writeAtomic encodes into a temporary file next to the target and renames
// it into place, so readers only ever see a complete artifact.
func writeAtomic(dir, name string, encode func(io.Writer) error) (path string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriterSize(tmp, 1<<20)
	if err = encode(bw); err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	if err = bw.Flush(); err != nil {
		return "", fmt.Errorf("flush %s: %w", name, err)
	}
	if err = tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync %s: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	path = filepath.Join(dir, name)
	if err = os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move %s into place: %w", name, err)
	}
	return path, nil
}
