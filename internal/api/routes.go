// Package api exposes the engine's HTTP surface: the segment registry,
// automation rule CRUD, the log read surface, and the cron entrypoint
// that drives the log processor.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/beaconpage/lifecycle-engine/internal/automation"
	"github.com/beaconpage/lifecycle-engine/internal/segments"
)

// Handlers wires the service layer to the router.
type Handlers struct {
	segments   *segments.Service
	rules      *automation.RuleService
	processor  *automation.Processor
	cronSecret string
	batchLimit int
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(seg *segments.Service, rules *automation.RuleService, proc *automation.Processor, cronSecret string, batchLimit int) *Handlers {
	if batchLimit <= 0 {
		batchLimit = automation.DefaultBatchLimit
	}
	return &Handlers{
		segments:   seg,
		rules:      rules,
		processor:  proc,
		cronSecret: cronSecret,
		batchLimit: batchLimit,
	}
}

// Router builds the chi router with all engine routes.
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Profile-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/segments", func(r chi.Router) {
			r.Get("/", h.HandleListSegments)
			r.Post("/", h.HandleCreateSegment)
			r.Post("/seed", h.HandleSeedSegments)
			r.Patch("/{segmentID}", h.HandleUpdateSegment)
			r.Delete("/{segmentID}", h.HandleDeleteSegment)
			r.Post("/{segmentID}/recompute", h.HandleRecomputeSegment)
			r.Get("/{segmentID}/count", h.HandleSegmentCount)
		})

		r.Route("/automation", func(r chi.Router) {
			r.Get("/rules", h.HandleListRules)
			r.Post("/rules", h.HandleCreateRule)
			r.Get("/rules/{ruleID}", h.HandleGetRule)
			r.Patch("/rules/{ruleID}", h.HandleUpdateRule)
			r.Delete("/rules/{ruleID}", h.HandleDeleteRule)
			r.Get("/logs", h.HandleListLogs)
		})
	})

	r.Post("/cron/process-logs", h.HandleProcessLogs)

	return r
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
