// Package rotation implements the gallery's outbound rotation boundary for
// photos: rewrite the file rotated by 90 degrees, then update the content
// index row so the collection can rebuild the record.
package rotation
