// Package handler contains HTTP handlers grouped by domain in subpackages.
// Shared binding and response helpers live in internal/common/handler.
package handler
