package notification

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/doctorry/platform/internal/shared/auth"
	"github.com/doctorry/platform/internal/shared/errors"
)

// Handler provides HTTP handlers for push subscriptions
type Handler struct {
	store *SubscriptionStore
}

// NewHandler creates a new notification handler
func NewHandler(store *SubscriptionStore) *Handler {
	return &Handler{store: store}
}

// Routes registers the notification routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/subscriptions", h.Subscribe)
	r.Get("/subscriptions", h.ListSubscriptions)
	r.Delete("/subscriptions", h.Unsubscribe)

	return r
}

type SubscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256DH string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Subscribe stores a push subscription for the authenticated user
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Endpoint == "" {
		writeError(w, errors.BadRequest("endpoint is required"))
		return
	}

	sub := &PushSubscription{
		UserID:    user.ID,
		UserType:  user.UserType,
		Endpoint:  req.Endpoint,
		P256DHKey: req.Keys.P256DH,
		AuthKey:   req.Keys.Auth,
	}

	if err := h.store.Save(r.Context(), sub); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// ListSubscriptions lists the authenticated user's subscriptions
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	subs, err := h.store.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": subs})
}

// Unsubscribe removes a subscription by endpoint
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req UnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Endpoint == "" {
		writeError(w, errors.BadRequest("endpoint is required"))
		return
	}

	if err := h.store.Delete(r.Context(), user.ID, req.Endpoint); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
