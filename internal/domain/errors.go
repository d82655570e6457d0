// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the entity already exists or was modified by another request.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates malformed input. It is always raised before any mutating storage call.
var ErrValidation = errors.New("validation failed")

// ErrResourcesExist indicates a delete was refused because dependent rows still reference the target.
var ErrResourcesExist = errors.New("cannot delete project with existing resources")
