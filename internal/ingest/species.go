package ingest

import (
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/RAP/internal/core"
)

// ReadSpeciesCatalog parses a species group CSV: a header row, then one
// species code and its group per row. Validation is left to
// core.NewSpeciesCatalog so every problem is reported together.
func ReadSpeciesCatalog(r io.Reader) (*core.SpeciesCatalog, error) {
	cr := newCSVReader(r)

	if _, err := cr.Read(); err == io.EOF {
		return nil, fmt.Errorf("%w: species file is empty", core.ErrInvalidSpecies)
	} else if err != nil {
		return nil, fmt.Errorf("reading species header: %w", err)
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading species rows: %w", err)
	}

	entries := make([]core.SpeciesEntry, 0, len(rows))
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		row = padRow(row, 2)
		entries = append(entries, core.SpeciesEntry{
			Code:  core.CleanCell(row[0]),
			Group: core.CleanCell(row[1]),
		})
	}
	return core.NewSpeciesCatalog(entries, core.FRISpecies())
}

// LoadSpeciesCatalog opens path and reads it with ReadSpeciesCatalog.
func LoadSpeciesCatalog(path string) (*core.SpeciesCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening species file: %w", err)
	}
	defer f.Close()

	c, err := ReadSpeciesCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
