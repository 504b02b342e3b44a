package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ARamos00/nursery-tracker/internal/concurrency"
	"github.com/ARamos00/nursery-tracker/internal/domain"
	"github.com/ARamos00/nursery-tracker/internal/http/middleware"
	"github.com/ARamos00/nursery-tracker/internal/http/response"
	"github.com/ARamos00/nursery-tracker/internal/repository"
	"github.com/ARamos00/nursery-tracker/internal/service"
)

// PlantHandler exposes the collaborator CRUD surface that exercises the
// reliability primitives: idempotent POST, ETag on reads, If-Match on writes.
type PlantHandler struct {
	svc            *service.PlantService
	enforceIfMatch bool
}

func NewPlantHandler(svc *service.PlantService, enforceIfMatch bool) *PlantHandler {
	return &PlantHandler{svc: svc, enforceIfMatch: enforceIfMatch}
}

type plantInput struct {
	Name     *string `json:"name"`
	Species  *string `json:"species"`
	Status   *string `json:"status"`
	Quantity *int    `json:"quantity"`
}

func (h *PlantHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	plants, err := h.svc.List(r.Context(), ownerID, pageFromQuery(r))
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list plants", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, pageView(plants))
}

func (h *PlantHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var in plantInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "name is required", nil)
		return
	}

	p := &domain.Plant{
		OwnerID:  ownerID,
		Name:     strings.TrimSpace(*in.Name),
		Status:   domain.PlantStatusActive,
		Quantity: 1,
	}
	if in.Species != nil {
		p.Species = strings.TrimSpace(*in.Species)
	}
	if in.Status != nil {
		status, err := parsePlantStatus(*in.Status)
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
		p.Status = status
	}
	if in.Quantity != nil {
		if *in.Quantity < 0 {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "quantity must be >= 0", nil)
			return
		}
		p.Quantity = *in.Quantity
	}

	if err := h.svc.Create(r.Context(), p); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to create plant", nil)
		return
	}

	created, err := h.svc.Get(r.Context(), ownerID, p.ID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load created plant", nil)
		return
	}
	w.Header().Set("ETag", concurrency.Fingerprint(created))
	response.JSON(w, r, http.StatusCreated, created)
}

func (h *PlantHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, p, done := h.loadPlant(w, r)
	if done {
		return
	}
	w.Header().Set("ETag", concurrency.Fingerprint(p))
	response.JSON(w, r, http.StatusOK, p)
}

func (h *PlantHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, p, done := h.loadPlant(w, r)
	if done {
		return
	}
	if h.rejectPrecondition(w, r, p) {
		return
	}

	var in plantInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	statusChanged := false
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "name must not be empty", nil)
			return
		}
		p.Name = name
	}
	if in.Species != nil {
		p.Species = strings.TrimSpace(*in.Species)
	}
	if in.Status != nil {
		status, err := parsePlantStatus(*in.Status)
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
		statusChanged = status != p.Status
		p.Status = status
	}
	if in.Quantity != nil {
		if *in.Quantity < 0 {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "quantity must be >= 0", nil)
			return
		}
		p.Quantity = *in.Quantity
	}

	if err := h.svc.Update(r.Context(), p, statusChanged); err != nil {
		if errors.Is(err, repository.ErrPlantNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "plant not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to update plant", nil)
		return
	}

	// The returned token must reflect the post-write row, never a fingerprint
	// computed before the write.
	updated, err := h.svc.Get(r.Context(), ownerID, p.ID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load updated plant", nil)
		return
	}
	w.Header().Set("ETag", concurrency.Fingerprint(updated))
	response.JSON(w, r, http.StatusOK, updated)
}

func (h *PlantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, p, done := h.loadPlant(w, r)
	if done {
		return
	}
	if h.rejectPrecondition(w, r, p) {
		return
	}
	if err := h.svc.Delete(r.Context(), ownerID, p.ID); err != nil {
		if errors.Is(err, repository.ErrPlantNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "plant not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to delete plant", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// rejectPrecondition runs the If-Match check and writes the error response on
// failure. The authoritative current token always rides along so the caller
// can resynchronize.
func (h *PlantHandler) rejectPrecondition(w http.ResponseWriter, r *http.Request, p *domain.Plant) bool {
	err := concurrency.CheckIfMatch(r.Header.Get("If-Match"), p, h.enforceIfMatch)
	if err == nil {
		return false
	}
	var pre *concurrency.PreconditionError
	if errors.As(err, &pre) {
		response.Error(w, r, pre.StatusCode, pre.Code, pre.Detail, map[string]any{
			"expected_etag": pre.CurrentTag,
		})
		return true
	}
	response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "precondition check failed", nil)
	return true
}

func (h *PlantHandler) loadPlant(w http.ResponseWriter, r *http.Request) (uint, *domain.Plant, bool) {
	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return 0, nil, true
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid plant id", nil)
		return 0, nil, true
	}
	p, err := h.svc.Get(r.Context(), ownerID, uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrPlantNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "plant not found", nil)
			return 0, nil, true
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load plant", nil)
		return 0, nil, true
	}
	return ownerID, p, false
}

func parsePlantStatus(raw string) (domain.PlantStatus, error) {
	switch domain.PlantStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case domain.PlantStatusActive:
		return domain.PlantStatusActive, nil
	case domain.PlantStatusDormant:
		return domain.PlantStatusDormant, nil
	case domain.PlantStatusHarvested:
		return domain.PlantStatusHarvested, nil
	case domain.PlantStatusCulled:
		return domain.PlantStatusCulled, nil
	}
	return "", errors.New("unknown plant status")
}
