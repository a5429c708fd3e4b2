// Package forms registers the survey form definitions with the core registry.
// Import this package to ensure all forms are registered.
package forms

// This file exists to provide a single import point.
// Each form file uses init() to register its form.
