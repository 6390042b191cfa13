package models

import "encoding/json"

// HealthStatus is the backend health payload. Unknown fields are preserved.
type HealthStatus map[string]interface{}

// CollectionInfo describes the backend's document collection.
// The backend may answer 200 with only Error set.
type CollectionInfo struct {
	DocumentCount  int    `json:"document_count"`
	CollectionName string `json:"collection_name,omitempty"`
	Status         string `json:"status,omitempty"`
	Error          string `json:"error,omitempty"`

	// Raw is the payload exactly as the backend sent it.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the typed fields and keeps a copy of data in Raw.
func (ci *CollectionInfo) UnmarshalJSON(data []byte) error {
	type plain CollectionInfo
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*ci = CollectionInfo(p)
	ci.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// RawJSON returns the backend payload, or nil when ci was built locally.
func (ci CollectionInfo) RawJSON() json.RawMessage {
	return ci.Raw
}
