package domain

import (
	"strings"
	"time"
)

// DocumentStatus is derived purely from filesystem presence: an error marker
// means failed, a markdown artifact means ready, neither means the background
// conversion is still running.
type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// FileKind enumerates the upload formats the service accepts.
type FileKind string

const (
	KindPDF  FileKind = "pdf"
	KindDOCX FileKind = "docx"
)

// ParseFileKind maps a filename extension (with or without the leading dot)
// onto a supported FileKind.
func ParseFileKind(ext string) (FileKind, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "pdf":
		return KindPDF, true
	case "docx":
		return KindDOCX, true
	default:
		return "", false
	}
}

// DocumentInfo describes one uploaded document for listing purposes.
type DocumentInfo struct {
	DocID      string         `json:"doc_id"`
	Filename   string         `json:"filename"`
	Status     DocumentStatus `json:"status"`
	UploadTime time.Time      `json:"upload_time"`
	FileSize   int64          `json:"file_size"`
}
