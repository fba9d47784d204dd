package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/seanmcnab/habitd/internal/model"
	"github.com/seanmcnab/habitd/internal/notify"
	"github.com/seanmcnab/habitd/internal/store"
)

// PushHandler manages browser push subscriptions.
type PushHandler struct {
	push    *store.PushStore
	service *notify.Service
	logger  *slog.Logger
}

func NewPushHandler(push *store.PushStore, service *notify.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{push: push, service: service, logger: logger}
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	DeviceName string `json:"device_name"`
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		errorJSON(w, http.StatusBadRequest, "endpoint and keys are required")
		return
	}

	sub, err := h.push.CreateSubscription(req.Endpoint, req.Keys.P256dh, req.Keys.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("create subscription", "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.push.DeleteSubscription(id); err != nil {
		h.logger.Error("delete subscription", "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.push.List()
	if err != nil {
		h.logger.Error("list subscriptions", "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetVAPIDKey returns the public key the browser needs to subscribe.
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}
