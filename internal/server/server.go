package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/seanmcnab/habitd/internal/handler"
	"github.com/seanmcnab/habitd/internal/middleware"
	"github.com/seanmcnab/habitd/internal/notify"
	"github.com/seanmcnab/habitd/internal/store"
	ws "github.com/seanmcnab/habitd/internal/websocket"
)

type Server struct {
	db        *sql.DB
	hub       *ws.Hub
	habitH    *handler.HabitHandler
	pushH     *handler.PushHandler
	scheduler *notify.Scheduler
	logger    *slog.Logger
}

func New(db *sql.DB, pushCfg notify.Config, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	stateStore := store.NewStateStore(db)
	habitStore := store.NewHabitStore(stateStore, logger.With("component", "store"))
	if err := habitStore.Restore(); err != nil {
		return nil, fmt.Errorf("restore habits: %w", err)
	}
	pushStore := store.NewPushStore(db)

	var scheduler *notify.Scheduler
	var pushH *handler.PushHandler
	if pushCfg.Enabled() {
		service := notify.NewService(pushCfg.VAPIDPublicKey, pushCfg.VAPIDPrivateKey)
		surface := notify.NewWebPushSurface(service, pushStore, logger.With("component", "push"))
		scheduler = notify.NewScheduler(surface, logger.With("component", "scheduler"))
		pushH = handler.NewPushHandler(pushStore, service, logger.With("component", "push_handler"))
	} else {
		logger.Info("VAPID keys not configured, reminders disabled")
	}

	habitH := handler.NewHabitHandler(habitStore, scheduler, hub, logger.With("component", "habit"))

	return &Server{
		db:        db,
		hub:       hub,
		habitH:    habitH,
		pushH:     pushH,
		scheduler: scheduler,
		logger:    logger,
	}, nil
}

// StartScheduler seeds the reminder scheduler with the restored habit list.
// Without this, reminders would only work after the first mutation.
func (s *Server) StartScheduler() {
	s.habitH.SyncSchedule()
}

// StopScheduler cancels the reminder timer and waits for an in-flight tick.
func (s *Server) StopScheduler() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("GET /api/habits", s.habitH.List)
	mux.HandleFunc("POST /api/habits", s.habitH.Create)
	mux.HandleFunc("PUT /api/habits/{id}", s.habitH.Update)
	mux.HandleFunc("DELETE /api/habits/{id}", s.habitH.Delete)
	mux.HandleFunc("POST /api/habits/{id}/toggle", s.habitH.Toggle)
	mux.HandleFunc("GET /api/stats", s.habitH.Stats)

	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	}

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
