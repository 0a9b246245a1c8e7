package http

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/controller"
	"github.com/kjstillabower/weather-lookup/internal/display"
	"github.com/kjstillabower/weather-lookup/internal/lifecycle"
	"github.com/kjstillabower/weather-lookup/internal/observability"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Handler holds dependencies for HTTP handlers. Every page request gets a
// fresh controller.PageState; the dispatcher runs the bound controller on it.
type Handler struct {
	events    *controller.Dispatcher
	query     controller.Handler
	storePing func() error
	logger    *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. query serves the JSON API and must not
// touch the page's last city (controller.Controller.HandleQuery). storePing,
// when set, is reported under the "storage" health check.
func NewHandler(events *controller.Dispatcher, query controller.Handler, storePing func() error, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		events:    events,
		query:     query,
		storePing: storePing,
		logger:    logger,
	}
}

// pageData is what the page template renders.
type pageData struct {
	controller.Snapshot
	Fahrenheit bool
}

// GetPage handles GET /. It fires the load event, which restores and looks up
// the last submitted city when there is one.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	page := controller.NewPageState("", display.ParseUnit(r.URL.Query().Get("unit")))
	h.events.Load(r.Context(), page)
	h.renderPage(w, r, page.Snapshot())
}

// PostPage handles POST / (the search form).
func (h *Handler) PostPage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.pageFromForm(w, r)
	if !ok {
		return
	}
	h.events.Submit(r.Context(), page)
	h.renderPage(w, r, page.Snapshot())
}

// PostUnit handles POST /unit (the unit toggle). The lookup is repeated for
// the city currently in the input.
func (h *Handler) PostUnit(w http.ResponseWriter, r *http.Request) {
	page, ok := h.pageFromForm(w, r)
	if !ok {
		return
	}
	h.events.UnitChange(r.Context(), page)
	h.renderPage(w, r, page.Snapshot())
}

func (h *Handler) pageFromForm(w http.ResponseWriter, r *http.Request) (*controller.PageState, bool) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_FORM", "unable to parse form")
		return nil, false
	}
	return controller.NewPageState(r.PostFormValue("city"), display.ParseUnit(r.PostFormValue("unit"))), true
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, snap controller.Snapshot) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := pageData{Snapshot: snap, Fahrenheit: snap.Unit == display.Fahrenheit}
	if err := pageTemplate.Execute(w, data); err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).Error("render page", zap.Error(err))
	}
}

// GetWeather handles GET /api/weather/{city}?unit=. It runs the lookup a form
// submit does, without remembering the city, and returns the panel as JSON.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city := mux.Vars(r)["city"]
	page := controller.NewPageState(city, display.ParseUnit(r.URL.Query().Get("unit")))
	h.query(r.Context(), page)

	snap := page.Snapshot()
	switch {
	case snap.Weather != nil:
		writeJSON(w, http.StatusOK, snap)
	case snap.Error == display.MsgCityNotFound:
		writeJSON(w, http.StatusNotFound, snap)
	case snap.Error != "":
		writeJSON(w, http.StatusBadGateway, snap)
	default:
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", "city is required")
	}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	storageOK := true
	if h.storePing != nil {
		if err := h.storePing(); err != nil {
			storageOK = false
			checks["storage"] = "unhealthy"
			observability.LoggerFromContext(r.Context(), h.logger).Debug("storage ping failed", zap.Error(err))
		} else {
			checks["storage"] = "healthy"
		}
	}
	result := computeHealthStatus(storageOK)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "weather-lookup",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus orders the conditions: shutting-down > degraded > healthy.
func computeHealthStatus(storageOK bool) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if !storageOK {
		return healthResult{"degraded", http.StatusServiceUnavailable, "storage_unreachable"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}
