package config

import "errors"

var (
	// ErrNilPointer is returned when Load receives a nil destination.
	ErrNilPointer = errors.New("config.nil_pointer")

	// ErrParsingFailed is returned when environment parsing fails.
	ErrParsingFailed = errors.New("config.parsing_failed")

	// ErrEnvFileNotFound is returned when an explicitly requested env file is missing.
	ErrEnvFileNotFound = errors.New("config.env_file_not_found")
)
