package domain

import "errors"

var (
	// ErrFetch marks network or timeout failures against a registry endpoint.
	ErrFetch = errors.New("fetch failed")
	// ErrParse marks a response whose body could not be parsed at all.
	ErrParse = errors.New("parse failed")
	// ErrRecognition marks a blank OCR result.
	ErrRecognition = errors.New("captcha recognition failed")
	// ErrValidationRejected marks a nonzero captcha validation code.
	ErrValidationRejected = errors.New("captcha validation failed")
	// ErrEmptyArtifact marks a download that produced no bytes.
	ErrEmptyArtifact = errors.New("download produced empty file")
	// ErrExhausted marks a pk whose attempts ran out.
	ErrExhausted = errors.New("download attempts exhausted")
	// ErrNotFound is returned by repositories for unknown keys.
	ErrNotFound = errors.New("not found")
)
