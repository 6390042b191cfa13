package models

import (
	"encoding/json"
	"io"
)

// MIME types accepted for spreadsheet uploads.
const (
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeXLS  = "application/vnd.ms-excel"
)

// MaxUploadSize is the default upper bound for a single uploaded file (10 MiB).
const MaxUploadSize int64 = 10 * 1024 * 1024

// UploadRequest is a file on its way to the backend. Content is read exactly once.
type UploadRequest struct {
	FileName  string
	MimeType  string
	SizeBytes int64
	Content   io.Reader
}

// UploadResult is the backend's response to a successful upload.
type UploadResult struct {
	Message         string `json:"message"`
	FileName        string `json:"filename,omitempty"`
	ChunksProcessed int    `json:"chunks_processed"`
	Status          string `json:"status,omitempty"`

	// Raw is the payload exactly as the backend sent it.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the typed fields and keeps a copy of data in Raw.
func (r *UploadResult) UnmarshalJSON(data []byte) error {
	type plain UploadResult
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = UploadResult(p)
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// RawJSON returns the backend payload, or nil when r was built locally.
func (r UploadResult) RawJSON() json.RawMessage {
	return r.Raw
}
