package util

import "errors"

var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("already exists")
	ErrNotFound   = errors.New("not found")
	ErrDependency = errors.New("dependency failed")

	ErrNoExtractableText = errors.New("no extractable text found in document")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)
