package registry

import "errors"

var (
	// ErrCorruptDocument is returned when persisted bytes are not a well-formed registry document.
	ErrCorruptDocument = errors.New("registry document is corrupt")

	// ErrUnreadableSource is returned when an import source cannot be parsed as a workbook.
	ErrUnreadableSource = errors.New("import source is unreadable")

	// ErrDuplicateCode is returned when creating an asset whose code already exists.
	ErrDuplicateCode = errors.New("asset code already exists")

	// ErrNotFound is returned when a record id or code does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrForbidden is returned when the acting user lacks the privilege for an operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput is returned for requests that are missing required values.
	ErrInvalidInput = errors.New("invalid input")
)
