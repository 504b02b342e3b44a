package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ARamos00/nursery-tracker/internal/domain"
	"github.com/ARamos00/nursery-tracker/internal/http/middleware"
	"github.com/ARamos00/nursery-tracker/internal/http/response"
	"github.com/ARamos00/nursery-tracker/internal/repository"
	"github.com/ARamos00/nursery-tracker/internal/security"
)

// WebhookHandler manages webhook endpoints for the current owner and exposes
// a read-only view of deliveries. Delivery rows are created by the enqueue
// collaborator and transitioned only by the worker; there is no API mutation.
type WebhookHandler struct {
	endpoints    repository.WebhookEndpointRepository
	deliveries   repository.WebhookDeliveryRepository
	requireHTTPS bool
}

func NewWebhookHandler(
	endpoints repository.WebhookEndpointRepository,
	deliveries repository.WebhookDeliveryRepository,
	requireHTTPS bool,
) *WebhookHandler {
	return &WebhookHandler{endpoints: endpoints, deliveries: deliveries, requireHTTPS: requireHTTPS}
}

type endpointInput struct {
	Name       *string   `json:"name"`
	URL        *string   `json:"url"`
	EventTypes *[]string `json:"event_types"`
	Secret     *string   `json:"secret"`
	IsActive   *bool     `json:"is_active"`
}

// endpointView never carries the shared secret; only its last four characters
// are exposed after creation.
type endpointView struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	EventTypes  []string  `json:"event_types"`
	SecretLast4 string    `json:"secret_last4"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func viewEndpoint(ep *domain.WebhookEndpoint) endpointView {
	types := ep.EventTypeFilter()
	if types == nil {
		types = []string{}
	}
	return endpointView{
		ID:          ep.ID,
		Name:        ep.Name,
		URL:         ep.URL,
		EventTypes:  types,
		SecretLast4: ep.SecretLast4,
		IsActive:    ep.IsActive,
		CreatedAt:   ep.CreatedAt,
		UpdatedAt:   ep.UpdatedAt,
	}
}

func (h *WebhookHandler) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	endpoints, err := h.endpoints.List(r.Context(), ownerID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list endpoints", nil)
		return
	}
	views := make([]endpointView, 0, len(endpoints))
	for i := range endpoints {
		views = append(views, viewEndpoint(&endpoints[i]))
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"items": views})
}

func (h *WebhookHandler) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var in endpointInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "name is required", nil)
		return
	}
	url, err := h.validateURL(in.URL)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	var types []string
	if in.EventTypes != nil {
		types, err = normalizeEventTypes(*in.EventTypes)
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
	}

	// A secret omitted on create is generated server-side and revealed exactly
	// once, in the creation response.
	secret := ""
	generated := false
	if in.Secret != nil && *in.Secret != "" {
		secret = *in.Secret
	} else {
		secret, err = security.NewEndpointSecret()
		if err != nil {
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to generate secret", nil)
			return
		}
		generated = true
	}

	ep := &domain.WebhookEndpoint{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(*in.Name),
		URL:         url,
		Secret:      secret,
		SecretLast4: security.Last4(secret),
		IsActive:    true,
	}
	if in.IsActive != nil {
		ep.IsActive = *in.IsActive
	}
	if err := ep.SetEventTypeFilter(types); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to encode event types", nil)
		return
	}
	if err := h.endpoints.Create(r.Context(), ep); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to create endpoint", nil)
		return
	}
	view := createdEndpointView{endpointView: viewEndpoint(ep)}
	if generated {
		view.Secret = secret
	}
	response.JSON(w, r, http.StatusCreated, view)
}

// createdEndpointView is the one place a full secret may appear, and only when
// it was generated server-side.
type createdEndpointView struct {
	endpointView
	Secret string `json:"secret,omitempty"`
}

func (h *WebhookHandler) GetEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, done := h.loadEndpoint(w, r)
	if done {
		return
	}
	response.JSON(w, r, http.StatusOK, viewEndpoint(ep))
}

func (h *WebhookHandler) UpdateEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, done := h.loadEndpoint(w, r)
	if done {
		return
	}
	var in endpointInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "name must not be empty", nil)
			return
		}
		ep.Name = name
	}
	if in.URL != nil {
		url, err := h.validateURL(in.URL)
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
		ep.URL = url
	}
	if in.EventTypes != nil {
		types, err := normalizeEventTypes(*in.EventTypes)
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
		if err := ep.SetEventTypeFilter(types); err != nil {
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to encode event types", nil)
			return
		}
	}
	if in.Secret != nil {
		// Secret rotation: accepted on update, still never echoed back.
		if *in.Secret == "" {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "secret must not be empty", nil)
			return
		}
		ep.Secret = *in.Secret
		ep.SecretLast4 = security.Last4(*in.Secret)
	}
	if in.IsActive != nil {
		ep.IsActive = *in.IsActive
	}

	if err := h.endpoints.Update(r.Context(), ep); err != nil {
		if errors.Is(err, repository.ErrWebhookEndpointNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "webhook endpoint not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to update endpoint", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, viewEndpoint(ep))
}

func (h *WebhookHandler) DeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid endpoint id", nil)
		return
	}
	if err := h.endpoints.Delete(r.Context(), ownerID, uint(id)); err != nil {
		if errors.Is(err, repository.ErrWebhookEndpointNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "webhook endpoint not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to delete endpoint", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WebhookHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	deliveries, err := h.deliveries.List(r.Context(), ownerID, pageFromQuery(r))
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list deliveries", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, pageView(deliveries))
}

func (h *WebhookHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid delivery id", nil)
		return
	}
	d, err := h.deliveries.FindByID(r.Context(), ownerID, uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrWebhookDeliveryNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "webhook delivery not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load delivery", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, d)
}

func (h *WebhookHandler) loadEndpoint(w http.ResponseWriter, r *http.Request) (*domain.WebhookEndpoint, bool) {
	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return nil, true
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid endpoint id", nil)
		return nil, true
	}
	ep, err := h.endpoints.FindByID(r.Context(), ownerID, uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrWebhookEndpointNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "webhook endpoint not found", nil)
			return nil, true
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load endpoint", nil)
		return nil, true
	}
	return ep, false
}

func (h *WebhookHandler) validateURL(raw *string) (string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return "", errors.New("url is required")
	}
	url := strings.TrimSpace(*raw)
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "", errors.New("url must be http(s)")
	}
	if h.requireHTTPS && !strings.HasPrefix(lower, "https://") {
		return "", errors.New("HTTPS is required for webhooks in this environment")
	}
	return url, nil
}

// normalizeEventTypes validates a subscription filter. An empty list means
// "all"; a wildcard entry collapses the list to ["*"].
func normalizeEventTypes(types []string) ([]string, error) {
	if len(types) == 0 {
		return nil, nil
	}
	for _, t := range types {
		if t == domain.EventTypeWildcard {
			return []string{domain.EventTypeWildcard}, nil
		}
	}
	known := make(map[string]struct{}, len(domain.KnownEventTypes))
	for _, t := range domain.KnownEventTypes {
		known[t] = struct{}{}
	}
	var invalid []string
	for _, t := range types {
		if _, ok := known[t]; !ok {
			invalid = append(invalid, t)
		}
	}
	if len(invalid) > 0 {
		return nil, errors.New("unknown event type(s): " + strings.Join(invalid, ", "))
	}
	return types, nil
}
