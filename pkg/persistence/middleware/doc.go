// Package middleware decorates a ports.StateStore with encryption at rest
// and redaction of sensitive data.
package middleware
