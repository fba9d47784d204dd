package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/seanmcnab/habitd/internal/dates"
	"github.com/seanmcnab/habitd/internal/model"
	"github.com/seanmcnab/habitd/internal/notify"
	"github.com/seanmcnab/habitd/internal/store"
	"github.com/seanmcnab/habitd/internal/streak"
	"github.com/seanmcnab/habitd/internal/websocket"
)

// HabitHandler exposes the habit store as a JSON API. Every mutation
// broadcasts a sync message and pushes the fresh reminder list to the
// scheduler so reminders never lag behind the collection.
type HabitHandler struct {
	habits    *store.HabitStore
	scheduler *notify.Scheduler
	hub       *websocket.Hub
	logger    *slog.Logger
	now       func() time.Time
}

func NewHabitHandler(habits *store.HabitStore, scheduler *notify.Scheduler, hub *websocket.Hub, logger *slog.Logger) *HabitHandler {
	return &HabitHandler{
		habits:    habits,
		scheduler: scheduler,
		hub:       hub,
		logger:    logger,
		now:       time.Now,
	}
}

// habitView is the render-ready shape of one habit. CompletionRate is derived
// on read and never persisted.
type habitView struct {
	model.Habit
	CompletedToday bool `json:"completed_today"`
	CompletionRate int  `json:"completion_rate"`
}

func makeView(h model.Habit, today time.Time) habitView {
	return habitView{
		Habit:          h,
		CompletedToday: h.CompletedOn(dates.DayKey(today)),
		CompletionRate: streak.CompletionRate(len(h.CompletedDates), h.CreatedAt, today),
	}
}

type habitRequest struct {
	Name             string `json:"name"`
	NotificationTime string `json:"notification_time"`
}

func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	today := h.now()
	views := []habitView{}
	for _, habit := range h.habits.Snapshot() {
		views = append(views, makeView(habit, today))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req habitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	habit, err := h.habits.Create(req.Name, req.NotificationTime)
	if err != nil {
		if errors.Is(err, store.ErrEmptyName) || errors.Is(err, store.ErrInvalidTime) {
			errorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("create habit", "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to create habit")
		return
	}

	h.broadcast("created", habit.ID)
	h.SyncSchedule()

	writeJSON(w, http.StatusCreated, makeView(*habit, h.now()))
}

func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req habitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	habit, err := h.habits.Update(r.PathValue("id"), req.Name, req.NotificationTime)
	if err != nil {
		if errors.Is(err, store.ErrEmptyName) || errors.Is(err, store.ErrInvalidTime) {
			errorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("update habit", "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to update habit")
		return
	}
	if habit == nil {
		// Unknown ids are a deliberate no-op
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.broadcast("updated", habit.ID)
	h.SyncSchedule()

	writeJSON(w, http.StatusOK, makeView(*habit, h.now()))
}

func (h *HabitHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	habit, err := h.habits.ToggleCompletion(r.PathValue("id"), h.now())
	if err != nil {
		h.logger.Error("toggle habit", "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to toggle habit")
		return
	}
	if habit == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.broadcast("toggled", habit.ID)

	writeJSON(w, http.StatusOK, makeView(*habit, h.now()))
}

func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.habits.Delete(id); err != nil {
		h.logger.Error("delete habit", "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to delete habit")
		return
	}

	h.broadcast("deleted", id)
	h.SyncSchedule()

	w.WriteHeader(http.StatusNoContent)
}

func (h *HabitHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.habits.Stats(h.now()))
}

// SyncSchedule pushes the current reminder list to the scheduler as a value
// snapshot.
func (h *HabitHandler) SyncSchedule() {
	if h.scheduler == nil {
		return
	}
	var scheduled []notify.ScheduledHabit
	for _, habit := range h.habits.Snapshot() {
		scheduled = append(scheduled, notify.ScheduledHabit{
			ID:   habit.ID,
			Name: habit.Name,
			Time: habit.NotificationTime,
		})
	}
	h.scheduler.UpdateSchedule(scheduled)
}

func (h *HabitHandler) broadcast(action, id string) {
	if h.hub != nil {
		h.hub.Broadcast(websocket.NewMessage("habit", action, id))
	}
}
