package model

import "time"

// Asset is an immutable stored artifact produced by a pipeline stage
type Asset struct {
	ID        string         `json:"id"`
	Kind      AssetKind      `json:"kind"`
	Key       string         `json:"key"`
	URL       string         `json:"url"`
	Meta      map[string]any `json:"meta,omitempty"`
	ProjectID string         `json:"projectId,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
