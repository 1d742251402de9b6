// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates that input failed a pre-save validation hook.
// Wrapped messages after the "validation: " prefix are user facing.
var ErrValidation = errors.New("validation")
