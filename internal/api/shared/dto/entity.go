package dto

import (
	"encoding/json"

	apierrors "github.com/feral-file/ff-state-reducer/internal/api/shared/errors"
	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/updater"
)

// Source tells where a returned snapshot was read from
type Source string

const (
	SourceCache      Source = "cache"
	SourceRepository Source = "repository"
	SourceReduction  Source = "reduction"
)

// EntityResponse is a materialized entity
type EntityResponse struct {
	Kind    domain.EntityKind `json:"kind"`
	ID      string            `json:"id"`
	Version int64             `json:"version"`
	Deleted bool              `json:"deleted"`
	Data    json.RawMessage   `json:"data"`
	Source  Source            `json:"source"`
}

// MapSnapshotToDTO converts an updater snapshot
func MapSnapshotToDTO(s updater.Snapshot, source Source) *EntityResponse {
	return &EntityResponse{
		Kind:    s.Kind,
		ID:      s.ID,
		Version: s.Version,
		Deleted: s.Deleted,
		Data:    s.Data,
		Source:  source,
	}
}

// EntityRefRequest names one entity in a request body
type EntityRefRequest struct {
	Kind string `json:"kind" binding:"required"`
	ID   string `json:"id" binding:"required"`
}

// RefreshEntitiesRequest is the body of a batch refresh
type RefreshEntitiesRequest struct {
	Refs []EntityRefRequest `json:"refs" binding:"required,min=1,dive"`
}

// RefreshEntityResult is the outcome of one refresh in a batch
type RefreshEntityResult struct {
	Kind   domain.EntityKind   `json:"kind"`
	ID     string              `json:"id"`
	Entity *EntityResponse     `json:"entity,omitempty"`
	Error  *apierrors.APIError `json:"error,omitempty"`
}

// RefreshEntitiesResponse lists batch results in request order
type RefreshEntitiesResponse struct {
	Results   []RefreshEntityResult `json:"results"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
}

// TriggerReductionResponse identifies the workflow started for an asynchronous batch
type TriggerReductionResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}
