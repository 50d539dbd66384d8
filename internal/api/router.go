package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medisched/slot-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Registry    *scheduling.Registry
	Coordinator *scheduling.Coordinator
	PgPool      *pgxpool.Pool
	Redis       *redis.Client
	Env         string
	Version     string
	Logger      zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Slot inventory
	r.Post("/slots", createSlotHandler(cfg.Registry))
	r.Post("/slots/bulk", bulkCreateSlotsHandler(cfg.Registry))
	r.Post("/slots/{id}/block", blockSlotHandler(cfg.Registry))
	r.Post("/slots/{id}/unblock", unblockSlotHandler(cfg.Registry))
	r.Get("/providers/{id}/slots", queryAvailableSlotsHandler(cfg.Registry))

	// Booking
	r.Post("/appointments", createAppointmentHandler(cfg.Coordinator))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Coordinator))
	r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Coordinator))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Coordinator))
	r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Coordinator))
	r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Coordinator))

	return r
}
