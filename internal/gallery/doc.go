// Package gallery is the core of the media gallery: immutable media
// records built from content index rows, the asynchronous thumbnail decode
// pipeline, and the reconciliation logic that heals index rows whose
// stored dimensions have drifted from the file on disk.
//
// Concurrency model: records are immutable except for a per-record usage
// flag marking whether a visible surface wants decode results. Decodes run
// on a bounded worker pool; a single dispatcher goroutine applies results,
// gated by the usage gate and by a per-surface supersede rule (the newest
// submission for a surface owns the right to write to it).
package gallery
