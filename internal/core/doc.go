// Package core is the tabular import and reconciliation engine.
//
// It accepts loosely structured files of unknown encoding and column
// layout, recovers a canonical schema from them, decides per row whether
// the row is a new entity, an update or a duplicate, and commits the
// outcome to a document store in batches of at most 500 operations.
//
// # Pipeline
//
// One [Importer] is built per run and carries a file through:
//
//  1. [NormalizeEncoding]: Windows-1252 fallback, BOM, marker characters,
//     double-encoded sequences, truncated accents
//  2. [InferDelimiter] on the first non-blank line
//  3. splitting with encoding/csv ([SplitLine] for single lines)
//  4. header mapping through a [Vocabulary] ([Vocabulary.MapHeaders])
//  5. value normalization per field rule ([Vocabulary.NormalizeValue])
//  6. a snapshot of the table ([BuildIndex])
//  7. [Reconcile]: identifier, then name, then address
//  8. the batched [Writer]
//
// Structured .json files skip steps 1 to 3. A zip bundle is dispatched file
// by file with [Importer.ImportBundle].
//
// # Table Registry
//
// Tables are registered at init time by the tables subpackage using
// [Register]. A bundle entry is routed with [Resolve] on its base name:
//
//	core.Register(core.TableDefinition{
//	    Info:    core.TableInfo{Key: "sites", Group: "Network", Label: "Sites"},
//	    Aliases: []string{"lieux", "clients"},
//	})
//
// # Failure Model
//
// A structural error ([StructuralError]) rejects a file before anything is
// written. A row that cannot be split or normalized is reported in
// [TableResult.RowErrors] and skipped. A failed commit ([CommitError]) stops
// the file; batches already committed stay. Runs on one table are
// serialized within a process only.
package core
