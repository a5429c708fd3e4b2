// Package ingest reads survey exports and the species catalog from disk.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/RAP/internal/core"
	"github.com/JonMunkholm/RAP/internal/core/forms"
)

// ContextCheckInterval is how often (in rows) to check for context cancellation.
var ContextCheckInterval = 100

// Legacy coordinate headers. Older exports name the columns X and Y.
const (
	legacyLongitude = "X"
	legacyLatitude  = "Y"
)

// FileStats summarises one ingested export.
type FileStats struct {
	Form     string `json:"form"`
	Path     string `json:"path"`
	Rows     int    `json:"rows"`
	Kept     int    `json:"kept"`
	Skipped  int    `json:"skipped"`
	TestRows int    `json:"test_rows"`
	Bytes    int64  `json:"bytes"`
}

// Result is the outcome of reading a survey directory.
type Result struct {
	Records     []core.SurveyRecord
	Diagnostics core.Diagnostics
	Files       []FileStats
}

// Reader ingests survey exports. UIDs are numbered per silvicultural system
// starting at 1, in file then row order, so record keys are stable across runs.
type Reader struct {
	// KeepTestData keeps rows flagged TestData=Yes instead of dropping them.
	KeepTestData bool

	logger *slog.Logger
	uids   map[core.SilvSys]int
}

// NewReader creates a Reader. A nil logger uses slog.Default().
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger, uids: make(map[core.SilvSys]int)}
}

// ReadSurveyDir reads the export of every registered form found in dir.
// Forms whose file is absent are skipped with a warning; finding none at all
// is an error.
func (r *Reader) ReadSurveyDir(ctx context.Context, dir string) (*Result, error) {
	res := &Result{}
	found := 0

	for _, def := range core.Forms() {
		path := filepath.Join(dir, def.Info.FileName)
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("survey export not found", "form", def.Info.Key, "path", path)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		found++

		stats, err := r.ReadSurvey(ctx, f, def, path, res)
		f.Close()
		if err != nil {
			return nil, err
		}
		res.Files = append(res.Files, stats)

		r.logger.Info("survey export read",
			"form", def.Info.Key,
			"path", path,
			"rows", stats.Rows,
			"kept", stats.Kept,
			"skipped", stats.Skipped,
			"test_rows", stats.TestRows,
			"bytes", stats.Bytes,
		)
	}

	if found == 0 {
		return nil, fmt.Errorf("no survey exports found in %s: %w", dir, os.ErrNotExist)
	}
	return res, nil
}

// ReadSurvey reads one export of form def from src, appending records and
// diagnostics to res. name identifies the file in diagnostics. Only a
// missing required column or an unreadable file is fatal; bad rows are
// skipped with a diagnostic.
func (r *Reader) ReadSurvey(ctx context.Context, src io.Reader, def core.FormDefinition, name string, res *Result) (FileStats, error) {
	stats := FileStats{Form: def.Info.Key, Path: name}
	counter := &countingReader{r: src}
	cr := newCSVReader(counter)
	base := filepath.Base(name)

	header, err := cr.Read()
	if err == io.EOF {
		return stats, fmt.Errorf("%s: %w: file is empty", base, core.ErrMissingColumns)
	}
	if err != nil {
		return stats, fmt.Errorf("%s: reading header: %w", base, err)
	}
	header = fixHeader(header, def.Renames)

	idx, err := core.ValidateHeaders(header, def.FieldSpecs)
	if err != nil {
		return stats, fmt.Errorf("%s: %w", base, err)
	}
	validator := core.NewRowValidator(def.FieldSpecs, idx)
	system := def.Info.SilvSys

	for n := 0; ; n++ {
		if n%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return stats, fmt.Errorf("operation cancelled: %w", err)
			}
		}

		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("%s: %w", base, err)
		}
		if isBlankRow(row) {
			continue
		}
		stats.Rows++
		line, _ := cr.FieldPos(0)
		ref := fmt.Sprintf("%s:%d", base, line)

		if len(row) > len(header) {
			res.Diagnostics.Add(core.DiagRowTooLong, ref,
				"row has %d cells but the header has %d; row skipped", len(row), len(header))
			stats.Skipped++
			continue
		}
		row = padRow(row, len(header))

		if forms.IsYes(core.GetCell(row, idx, forms.TestDataField)) {
			stats.TestRows++
			if !r.KeepTestData {
				continue
			}
		}

		if v := validator.ValidateRow(row); !v.Valid {
			msgs := make([]string, len(v.Errors))
			for i, e := range v.Errors {
				msgs[i] = e.Error()
			}
			res.Diagnostics.Add(core.DiagInvalidRow, ref, "row skipped: %s", strings.Join(msgs, "; "))
			stats.Skipped++
			continue
		}

		rec, err := def.BuildRecord(row, idx)
		if err != nil {
			res.Diagnostics.Add(core.DiagInvalidRow, ref, "row skipped: %v", err)
			stats.Skipped++
			continue
		}

		r.uids[system]++
		rec.UID = r.uids[system]
		rec.SilvSys = system

		for _, field := range []string{forms.LatitudeField, forms.LongitudeField} {
			raw := core.GetCell(row, idx, field)
			if _, ok := core.ParseCoord(raw); !ok {
				res.Diagnostics.Add(core.DiagBadCoordinate, rec.Key(),
					"%s %q at %s could not be parsed; treated as 0", field, raw, ref)
			}
		}

		for _, issue := range forms.CheckLenientCells(row, idx) {
			res.Diagnostics.Add(core.DiagMalformedCell, rec.Key(),
				"%s %q at %s is malformed; read as %q", issue.Field, issue.Value, ref, issue.Fallback)
		}

		res.Records = append(res.Records, rec)
		stats.Kept++
	}

	stats.Bytes = counter.n
	return stats, nil
}

// fixHeader applies the form's header renames and maps legacy X/Y columns
// onto longitude/latitude when the modern names are absent.
func fixHeader(header []string, renames map[string]string) []string {
	out := make([]string, len(header))
	has := make(map[string]bool, len(header))
	for i, h := range header {
		h = core.CleanCell(h)
		for from, to := range renames {
			if strings.EqualFold(h, from) {
				h = to
				break
			}
		}
		out[i] = h
		has[strings.ToLower(h)] = true
	}

	legacy := map[string]string{
		legacyLongitude: forms.LongitudeField,
		legacyLatitude:  forms.LatitudeField,
	}
	for i, h := range out {
		if modern, ok := legacy[h]; ok && !has[strings.ToLower(modern)] {
			out[i] = modern
		}
	}
	return out
}

// padRow extends a short row with empty cells.
func padRow(row []string, n int) []string {
	for len(row) < n {
		row = append(row, "")
	}
	return row
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
