package core

// validation.go provides header and row validation for survey CSV data.
//
// Validation happens at two levels:
//  1. Header validation: Ensures required columns are present
//  2. Row validation: Checks each cell against its FieldSpec (type, enum values)
//
// Catalog and boundary checks reuse ValidationError so that every problem in
// an input file can be reported at once through errors.Join.

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Field/column name or row reference
	Value   string // The invalid value
	Message string // Human-readable error message
	Err     error  // Sentinel category, if any
}

func (e ValidationError) Error() string {
	msg := e.Message
	if e.Value != "" {
		msg = fmt.Sprintf("%s (%q)", msg, e.Value)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, msg)
	}
	return msg
}

// Unwrap exposes the sentinel category to errors.Is.
func (e ValidationError) Unwrap() error {
	return e.Err
}

// ValidationResult contains the result of validating a row.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// RowValidator validates rows against a form's field specifications.
type RowValidator struct {
	specs     []FieldSpec
	headerIdx HeaderIndex
}

// NewRowValidator creates a validator for the given field specs and header index.
func NewRowValidator(specs []FieldSpec, headerIdx HeaderIndex) *RowValidator {
	return &RowValidator{
		specs:     specs,
		headerIdx: headerIdx,
	}
}

// ValidateRow validates a single CSV row and returns all validation errors.
func (v *RowValidator) ValidateRow(row []string) ValidationResult {
	result := ValidationResult{Valid: true}

	for _, spec := range v.specs {
		pos, ok := v.headerIdx[strings.ToLower(spec.Name)]
		if !ok || pos >= len(row) {
			if spec.Required {
				result.Valid = false
				result.Errors = append(result.Errors, ValidationError{
					Field:   spec.Name,
					Message: "missing required column",
				})
			}
			continue
		}

		raw := CleanCell(row[pos])

		if raw == "" && spec.Required && !spec.AllowEmpty {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   spec.Name,
				Message: "required field is empty",
			})
			continue
		}

		if spec.Normalizer != nil && raw != "" {
			raw = spec.Normalizer(raw)
		}

		if raw != "" {
			if err := ValidateCell(raw, spec); err != nil {
				result.Valid = false
				result.Errors = append(result.Errors, ValidationError{
					Field:   spec.Name,
					Value:   raw,
					Message: err.Error(),
				})
			}
		}
	}

	return result
}

// ValidateCell validates a single cell value against a field specification.
func ValidateCell(value string, spec FieldSpec) error {
	if value == "" {
		return nil
	}

	switch spec.Type {
	case FieldNumeric:
		if _, ok := ParseNumber(value); !ok {
			return fmt.Errorf("invalid number format")
		}
	case FieldDate:
		if len(value) < 10 || value[4] != '-' || value[7] != '-' {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD)")
		}
	case FieldBool:
		if _, ok := ParseYesNo(value); !ok {
			return fmt.Errorf("must be Yes/No")
		}
	case FieldEnum:
		if len(spec.EnumValues) > 0 {
			for _, ev := range spec.EnumValues {
				if strings.EqualFold(ev, value) {
					return nil
				}
			}
			return fmt.Errorf("value must be one of: %s", strings.Join(spec.EnumValues, ", "))
		}
	}
	return nil
}

// ValidateHeaders validates that all required columns exist in the CSV headers.
// Returns a mapping from column name to index, or an error listing missing columns.
func ValidateHeaders(headers []string, specs []FieldSpec) (HeaderIndex, error) {
	idx := MakeHeaderIndex(headers)
	var missing []string

	for _, spec := range specs {
		if spec.Required {
			if _, ok := idx[strings.ToLower(spec.Name)]; !ok {
				missing = append(missing, spec.Name)
			}
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	return idx, nil
}
