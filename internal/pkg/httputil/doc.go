// Package httputil provides shared HTTP response/request utilities for the
// membership API handlers, so every endpoint answers with the same JSON
// envelope and error shape.
package httputil
