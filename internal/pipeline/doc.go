// Package pipeline runs the sinks that consume a finished crawl.
//
// A crawl produces one model.Output. The pipeline hands that output to an
// ordered list of steps: the report writer, the SQLite history and the
// Qdrant store. Each step is independent; with WithContinueOnError a
// failing sink is logged and the remaining sinks still run, and Execute
// returns every failure joined.
package pipeline
