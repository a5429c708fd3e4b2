package core

import (
	"fmt"
	"sort"
)

// Diagnostic codes for recoverable problems. A diagnostic never stops a run;
// it is logged, counted and attached to the owning project's analysis comments.
//
//	ING001 - row has more cells than the header; row skipped
//	ING002 - coordinate could not be parsed; treated as 0
//	ING003 - row failed field validation; row skipped
//	ING004 - Yes/No or timestamp cell malformed; read leniently
//	RES001 - no project id could be determined for a record
//	RES002 - resolved project id has no boundary
//	RES003 - record form system differs from the boundary SILVSYS
//	RES004 - record location falls inside more than one boundary
//	RES005 - record has no coordinates; spatial match skipped
//	CLU001 - species name not in the catalog; slot not counted
//	CLU002 - composition tally differs from the total tree count
//	CLU003 - tree count could not be parsed; slot not counted
//	PRJ001 - duplicate cluster numbers within a project
//	PRJ002 - fewer than two distinct clusters; statistics unavailable
const (
	DiagRowTooLong        = "ING001"
	DiagBadCoordinate     = "ING002"
	DiagInvalidRow        = "ING003"
	DiagMalformedCell     = "ING004"
	DiagUnresolved        = "RES001"
	DiagUnknownProject    = "RES002"
	DiagSilvSysMismatch   = "RES003"
	DiagOverlap           = "RES004"
	DiagNoLocation        = "RES005"
	DiagInvalidSpecies    = "CLU001"
	DiagTallyMismatch     = "CLU002"
	DiagBadCount          = "CLU003"
	DiagDuplicateCluster  = "PRJ001"
	DiagInsufficientStats = "PRJ002"
)

// Diagnostic is one recoverable problem found during a run.
type Diagnostic struct {
	Code          string `json:"code"`
	RecordKey     string `json:"record_key,omitempty"`
	ProjectID     string `json:"proj_id,omitempty"`
	ClusterNumber string `json:"cluster_number,omitempty"`
	Message       string `json:"message"`
}

func (d Diagnostic) String() string {
	if d.RecordKey != "" {
		return fmt.Sprintf("[%s] %s: %s", d.Code, d.RecordKey, d.Message)
	}
	return fmt.Sprintf("[%s] %s", d.Code, d.Message)
}

// Diagnostics is an ordered list of diagnostics.
type Diagnostics []Diagnostic

// Add appends a diagnostic built from a format string.
func (ds *Diagnostics) Add(code, recordKey, format string, args ...any) {
	*ds = append(*ds, Diagnostic{
		Code:      code,
		RecordKey: recordKey,
		Message:   fmt.Sprintf(format, args...),
	})
}

// CountByCode returns the number of diagnostics per code.
func (ds Diagnostics) CountByCode() map[string]int {
	counts := make(map[string]int)
	for _, d := range ds {
		counts[d.Code]++
	}
	return counts
}

// Codes returns the distinct codes present, sorted.
func (ds Diagnostics) Codes() []string {
	counts := ds.CountByCode()
	codes := make([]string, 0, len(counts))
	for c := range counts {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Filter returns the diagnostics with the given code.
func (ds Diagnostics) Filter(code string) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// Messages returns the diagnostic messages in order.
func (ds Diagnostics) Messages() []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Message
	}
	return out
}
