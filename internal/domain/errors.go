package domain

import "errors"

var (
	// Validation
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrInvalidInput    = errors.New("invalid input")

	// Document extraction
	ErrExtraction = errors.New("text extraction failed")

	// Authentication
	ErrMissingToken = errors.New("missing bearer token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
	ErrAuthFailed   = errors.New("authentication failed")
)
