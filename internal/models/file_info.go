package models

import "time"

// FileInfo describes a file held in transient staging while it is relayed to the backend.
type FileInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	MimeType string    `json:"mimeType"`
	Size     int64     `json:"size"`
	StagedAt time.Time `json:"stagedAt"`
}
