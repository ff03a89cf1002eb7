package rest

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-state-reducer/internal/api/shared/dto"
	"github.com/feral-file/ff-state-reducer/internal/api/shared/executor"
	"github.com/feral-file/ff-state-reducer/internal/domain"
)

// Handler defines the REST API handlers
type Handler interface {
	// GetEntity returns a materialized entity
	// GET /api/v1/entities/:kind/:id
	GetEntity(c *gin.Context)

	// RefreshEntity recomputes an entity synchronously
	// POST /api/v1/entities/:kind/:id/refresh
	RefreshEntity(c *gin.Context)

	// RefreshEntities recomputes a batch of entities synchronously
	// POST /api/v1/entities/refresh
	RefreshEntities(c *gin.Context)

	// TriggerReduction starts a background reduction of a batch of entities
	// POST /api/v1/entities/reduce
	TriggerReduction(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

type handler struct {
	executor executor.Executor
}

// NewHandler creates a new REST API handler using the shared executor
func NewHandler(exec executor.Executor) Handler {
	return &handler{executor: exec}
}

func (h *handler) GetEntity(c *gin.Context) {
	ref, ok := parseRef(c)
	if !ok {
		return
	}

	entity, err := h.executor.GetEntity(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err, "Failed to get entity")
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (h *handler) RefreshEntity(c *gin.Context) {
	ref, ok := parseRef(c)
	if !ok {
		return
	}

	entity, err := h.executor.RefreshEntity(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err, "Failed to refresh entity")
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (h *handler) RefreshEntities(c *gin.Context) {
	refs, ok := bindRefs(c)
	if !ok {
		return
	}

	resp, err := h.executor.RefreshEntities(c.Request.Context(), refs)
	if err != nil {
		respondError(c, err, "Failed to refresh entities")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) TriggerReduction(c *gin.Context) {
	refs, ok := bindRefs(c)
	if !ok {
		return
	}

	resp, err := h.executor.TriggerReduction(c.Request.Context(), refs)
	if err != nil {
		respondError(c, err, "Failed to trigger reduction")
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ff-reducer-api",
	})
}

// parseRef reads the :kind and :id path params, responding 400 when they are unusable
func parseRef(c *gin.Context) (domain.EntityRef, bool) {
	kind, err := domain.ParseEntityKind(c.Param("kind"))
	if err != nil {
		respondBadRequest(c, "Unsupported entity kind", err.Error())
		return domain.EntityRef{}, false
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondBadRequest(c, "Entity id is required")
		return domain.EntityRef{}, false
	}
	return domain.EntityRef{Kind: kind, ID: id}, true
}

// bindRefs reads a {refs: [...]} body
func bindRefs(c *gin.Context) ([]domain.EntityRef, bool) {
	var req dto.RefreshEntitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return nil, false
	}

	refs := make([]domain.EntityRef, 0, len(req.Refs))
	for _, r := range req.Refs {
		kind, err := domain.ParseEntityKind(r.Kind)
		if err != nil {
			respondBadRequest(c, "Unsupported entity kind", err.Error())
			return nil, false
		}
		refs = append(refs, domain.EntityRef{Kind: kind, ID: strings.TrimSpace(r.ID)})
	}
	return refs, true
}
