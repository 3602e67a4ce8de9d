// Package middleware provides HTTP middleware for request metrics and
// debug logging.
package middleware
