// Package core provides the project resolution and aggregation engine.
//
// # Error Codes Reference
//
// This file defines the fatal error categories of a run and the support
// codes printed alongside them. Recoverable per-record problems are not
// errors; they are reported as Diagnostics (see diagnostics.go).
//
// # Catalog Errors (CFG001-CFG099)
//
//	CFG001 - Duplicate species: a species code appears more than once
//	         Action: Remove the repeated row from the species CSV
//
//	CFG002 - Invalid species: empty code or group, or a code outside the FRI list
//	         Action: Correct the species CSV against the FRI species codes
//
//	CFG003 - Invalid parameters: plot count, density cap or confidence out of range
//	         Action: Check NUM_OF_PLOTS, MAX_TREES_PER_SQM and CONFIDENCE
//
// # Boundary Errors (GEO001-GEO099)
//
//	GEO001 - Duplicate project: two boundaries share a ProjectID
//	         Action: Make every ProjectID in the boundary layer unique
//
//	GEO002 - Outside envelope: boundary centroid is not within 41<LAT<57, -96<LON<-73
//	         Action: Check the layer projection and the LAT/LON attributes
//
//	GEO003 - Missing project id: the id attribute is absent or empty
//	         Action: Check BOUNDARY_ID_FIELD against the layer attributes
//
//	GEO004 - Unsupported boundary: unknown file type or geometry
//	         Action: Provide a polygon GeoJSON or shapefile
//
// # Input Errors (INP001-INP099)
//
//	INP001 - Missing columns: a survey export lacks required columns
//	         Action: Re-export the survey with all fields
//
// # Storage Errors (STO001-STO099)
//
//	STO001 - Empty table: a sink was asked to write a table with no rows
//	         Action: Check that surveys were found and resolved to projects
//
// # Default Error (ERR000)
//
// Fallback when an error does not wrap a known category.
package core

import (
	"errors"
	"fmt"
)

// Fatal error categories. Wrap these with fmt.Errorf("...: %w") or carry
// them in ValidationError.Err so MapError can classify the failure.
var (
	ErrDuplicateSpecies = errors.New("duplicate species code")
	ErrInvalidSpecies   = errors.New("invalid species entry")
	ErrInvalidParams    = errors.New("invalid calculation parameters")
	ErrDuplicateProject = errors.New("duplicate project id")
	ErrOutsideEnvelope  = errors.New("boundary centroid outside envelope")
	ErrMissingProjectID = errors.New("missing project id")
	ErrUnsupportedLayer = errors.New("unsupported boundary layer")
	ErrMissingColumns   = errors.New("missing required columns")
	ErrEmptyTable       = errors.New("empty table")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorCategory maps a sentinel to its user message.
type errorCategory struct {
	err error
	msg UserMessage
}

// errorCategories is searched in order with errors.Is; the first match wins.
var errorCategories = []errorCategory{
	{ErrDuplicateSpecies, UserMessage{
		Message: "A species code appears more than once",
		Action:  "Remove the repeated row from the species CSV",
		Code:    "CFG001",
	}},
	{ErrInvalidSpecies, UserMessage{
		Message: "The species catalog contains an invalid entry",
		Action:  "Correct the species CSV against the FRI species codes",
		Code:    "CFG002",
	}},
	{ErrInvalidParams, UserMessage{
		Message: "Calculation parameters are out of range",
		Action:  "Check NUM_OF_PLOTS, MAX_TREES_PER_SQM and CONFIDENCE",
		Code:    "CFG003",
	}},
	{ErrDuplicateProject, UserMessage{
		Message: "Two project boundaries share a ProjectID",
		Action:  "Make every ProjectID in the boundary layer unique",
		Code:    "GEO001",
	}},
	{ErrOutsideEnvelope, UserMessage{
		Message: "A project boundary lies outside the accepted area",
		Action:  "Check the layer projection and the LAT/LON attributes",
		Code:    "GEO002",
	}},
	{ErrMissingProjectID, UserMessage{
		Message: "A project boundary has no ProjectID",
		Action:  "Check BOUNDARY_ID_FIELD against the layer attributes",
		Code:    "GEO003",
	}},
	{ErrUnsupportedLayer, UserMessage{
		Message: "The boundary layer could not be read",
		Action:  "Provide a polygon GeoJSON or shapefile",
		Code:    "GEO004",
	}},
	{ErrMissingColumns, UserMessage{
		Message: "A survey export is missing required columns",
		Action:  "Re-export the survey with all fields",
		Code:    "INP001",
	}},
	{ErrEmptyTable, UserMessage{
		Message: "Refusing to write an empty table",
		Action:  "Check that surveys were found and resolved to projects",
		Code:    "STO001",
	}},
}

// defaultMessage is returned when no category matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the run log for the technical error",
	Code:    "ERR000",
}

// MapError converts an error to a user-facing message by finding the first
// known category it wraps. Joined errors match if any member matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, c := range errorCategories {
		if errors.Is(err, c.err) {
			return c.msg
		}
	}
	return defaultMessage
}

// ErrorCode returns the support code for err, or "" for nil.
func ErrorCode(err error) string {
	return MapError(err).Code
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err belongs to a known category.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
