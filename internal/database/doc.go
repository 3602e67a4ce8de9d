// Package database provides the SQLite-backed content index for the media
// gallery.
//
// The index keeps one row of typed columns per media item, in separate
// photos and videos tables keyed by a stable numeric id. Read queries use
// positional projections: the column order requested by the caller is a
// contract, and rows are scanned by index, not by name.
//
// The index uses WAL mode so decode workers can read while the scanner
// writes.
package database
