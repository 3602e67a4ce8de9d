// Package scanner keeps the content index in sync with the files under the
// storage directory: periodic walks upsert photo and video rows in batches
// and prune rows whose files have disappeared.
package scanner
