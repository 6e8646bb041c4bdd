// Package common contains shared constants and sentinel errors used across
// BiteRate components.
package common

const (
	// DefaultContentType is stored for uploads that arrive without a MIME type.
	DefaultContentType = "application/octet-stream"

	// AuthorizationHeaderName carries the bearer token on mutating requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the token in the Authorization header.
	BearerPrefix = "Bearer "
)
