// Package startup loads and validates environment configuration for the
// media gallery server.
package startup
