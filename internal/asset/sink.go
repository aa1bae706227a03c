// Package asset stores generated artifacts: the blob goes to a
// StorageClient and the record to an AssetStore.
package asset

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/makeasinger/studio/internal/client"
	"github.com/makeasinger/studio/internal/model"
	"github.com/makeasinger/studio/internal/store"
)

// StoreRequest describes one artifact to persist
type StoreRequest struct {
	Kind        model.AssetKind
	Data        []byte
	Ext         string // including the dot, e.g. ".wav"
	ContentType string
	ProjectID   string
	Meta        map[string]any
}

// Sink is the AssetSink used by pipeline stages
type Sink struct {
	storage client.StorageClient
	records store.AssetStore
	now     func() time.Time
}

// NewSink creates a sink writing blobs to storage and records to records
func NewSink(storage client.StorageClient, records store.AssetStore) *Sink {
	return &Sink{storage: storage, records: records, now: time.Now}
}

// Store persists req under a freshly minted key; existing assets are never
// overwritten.
func (s *Sink) Store(ctx context.Context, req StoreRequest) (*model.Asset, error) {
	id := uuid.New().String()
	owner := req.ProjectID
	if owner == "" {
		owner = "shared"
	}
	key := fmt.Sprintf("%s/%s/%s%s", req.Kind, owner, id, req.Ext)

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err := s.storage.Upload(ctx, key, bytes.NewReader(req.Data), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s asset: %w", req.Kind, err)
	}

	a := &model.Asset{
		ID:        id,
		Kind:      req.Kind,
		Key:       key,
		URL:       url,
		Meta:      req.Meta,
		ProjectID: req.ProjectID,
		CreatedAt: s.now(),
	}
	if err := s.records.CreateAsset(ctx, a); err != nil {
		_ = s.storage.Delete(ctx, key)
		return nil, fmt.Errorf("failed to record %s asset: %w", req.Kind, err)
	}
	return a, nil
}
