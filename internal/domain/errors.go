package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrInvalidDocID        = errors.New("invalid document id")
)
