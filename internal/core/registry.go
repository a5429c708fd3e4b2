package core

import (
	"fmt"
	"sort"
	"sync"
)

// FieldType represents the expected data type for a survey CSV field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldBool
)

// FieldSpec defines validation rules for a single survey column.
type FieldSpec struct {
	Name       string              // Column header name (matched case-insensitively)
	Type       FieldType           // Expected data type
	Required   bool                // Column must exist in the CSV header
	AllowEmpty bool                // If true, empty values are allowed even when Required
	EnumValues []string            // Valid values for FieldEnum type
	Normalizer func(string) string // Optional transformation function
}

// HeaderIndex maps column names (lowercase) to their position in the CSV row.
type HeaderIndex map[string]int

// FormInfo contains display information about a survey form.
type FormInfo struct {
	Key      string  // Unique identifier: "clearcut"
	SilvSys  SilvSys // System the form surveys
	Label    string  // Display name
	FileName string  // Export file name inside the input directory
	Columns  []string
}

// BuildRecordFunc builds a SurveyRecord from one CSV row.
// UID is assigned by the caller.
type BuildRecordFunc func(row []string, idx HeaderIndex) (SurveyRecord, error)

// FormDefinition contains everything needed to ingest one survey form.
type FormDefinition struct {
	Info        FormInfo
	FieldSpecs  []FieldSpec
	Renames     map[string]string // header fix-ups applied before validation
	BuildRecord BuildRecordFunc
}

var (
	registry   = make(map[string]FormDefinition)
	registryMu sync.RWMutex
)

// RegisterForm adds a form definition to the registry.
// Panics if a form with the same key is already registered.
func RegisterForm(def FormDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("form already registered: %s", def.Info.Key))
	}

	if len(def.Info.Columns) == 0 && len(def.FieldSpecs) > 0 {
		def.Info.Columns = make([]string, len(def.FieldSpecs))
		for i, spec := range def.FieldSpecs {
			def.Info.Columns[i] = spec.Name
		}
	}

	registry[def.Info.Key] = def
}

// GetForm returns a form definition by key.
func GetForm(key string) (FormDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// Forms returns all registered forms ordered by system (CC before SH) then key.
func Forms() []FormDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]FormDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Info.SilvSys != result[j].Info.SilvSys {
			return result[i].Info.SilvSys < result[j].Info.SilvSys
		}
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// FormsFor returns the forms registered for one system.
func FormsFor(s SilvSys) []FormDefinition {
	var result []FormDefinition
	for _, def := range Forms() {
		if def.Info.SilvSys == s {
			result = append(result, def)
		}
	}
	return result
}

// FormCount returns the number of registered forms.
func FormCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// ClearForms removes all registered forms.
// Primarily useful for testing.
func ClearForms() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]FormDefinition)
}
