// Package errors provides the classified error primitives used across sitebuilder.
//
// Errors carry a category (config, plugin, render, filesystem, ...), a severity
// and a retry hint. The CLI adapter turns them into exit codes and user-facing
// messages; the dev server uses the same categories to pick HTTP status codes.
//
// Example usage:
//
//	err := errors.FileSystemError("passthrough source missing").
//		WithContext("path", "assets").
//		WithCause(statErr).
//		Build()
package errors
