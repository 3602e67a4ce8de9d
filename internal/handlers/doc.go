// Package handlers contains the HTTP handlers for the gallery API:
// record listings, thumbnail production, deletion and rotation. The
// thumbnail handler adapts each response into a display surface for the
// asynchronous decode loader.
package handlers
