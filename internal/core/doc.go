// Package core provides the project resolution and aggregation engine for
// regeneration assessment surveys.
//
// This package is the heart of the program, containing all domain logic
// independent of file formats, storage or transport. It can be used by the
// CLI, the report server, or tests without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Survey Forms: Registered via the form registry, each form has field
//     specs, header fix-ups and a record builder.
//   - ProjectResolver: Assigns every record a project id from the override,
//     the containing boundary polygon, or the id typed in the field.
//   - ClusterAggregator: Turns one record into species tallies, effective
//     density, site occupancy and composition.
//   - ProjectAggregator: Summarises the clusters of one boundary with
//     sample statistics.
//   - FlattenPlots: Produces the per-plot audit tables.
//
// # Form Registry
//
// Forms are registered at init time using [RegisterForm]:
//
//	core.RegisterForm(core.FormDefinition{
//	    Info: core.FormInfo{Key: "clearcut", SilvSys: core.Clearcut, FileName: "Clearcut_Survey_v2021.csv"},
//	    FieldSpecs: []core.FieldSpec{
//	        {Name: "ClusterNumber", Required: true, Type: core.FieldText},
//	    },
//	    BuildRecord: buildRecord,
//	})
//
// # Run
//
// [Engine.Run] resolves every record before aggregating any of them. Cluster
// and project aggregations then run on a bounded worker pool and write into
// pre-sized slices, so output order never depends on scheduling.
//
// # Error Handling
//
// Fatal input problems (catalog, boundaries, parameters) are returned as
// errors wrapping a sentinel; [MapError] turns them into support codes.
// Per-record problems never stop a run. They are returned as [Diagnostic]
// values and appended to the owning project's analysis comments.
package core
