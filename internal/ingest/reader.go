package ingest

// reader.go wraps raw export files for CSV parsing.
//
// Tablet exports arrive from Windows machines with a UTF-8 BOM and, now and
// then, stray invalid bytes in free-text comments. The decoder strips the BOM
// and replaces invalid sequences with U+FFFD so encoding/csv never sees them.

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// newDecoder returns a reader that drops a leading BOM and sanitizes UTF-8.
func newDecoder(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// newCSVReader returns a csv.Reader tolerant of ragged rows and stray quotes.
// Row length is checked by the caller so an overlong row can be reported.
func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(newDecoder(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false
	return cr
}

// countingReader tracks bytes read for the ingest summary.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
