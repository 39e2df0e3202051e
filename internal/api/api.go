package api

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tikwatch/tikwatch/internal/bandwidth"
	"github.com/tikwatch/tikwatch/internal/metrics"
	"github.com/tikwatch/tikwatch/internal/models"
	"github.com/tikwatch/tikwatch/internal/store"
)

// StatusProvider is the poller-side view the API needs: cached liveness and
// state cleanup on router deletion.
type StatusProvider interface {
	Status(routerID int64) models.RouterStatus
	Forget(routerID int64)
}

type API struct {
	store  *store.Store
	status StatusProvider
	log    *slog.Logger
}

func New(s *store.Store, status StatusProvider, log *slog.Logger) *API {
	return &API{store: s, status: status, log: log}
}

func (api *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/routers", api.handleRouters)
	mux.HandleFunc("/api/v1/routers/", api.handleRouter)
	mux.HandleFunc("/api/v1/health", api.handleHealth)
}

func (api *API) handleRouters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		routers, err := api.store.ListRouters()
		if err != nil {
			api.internalError(w, "list routers", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"routers": routers,
			"count":   len(routers),
		})

	case http.MethodPost:
		var req routerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.Name == "" || req.Host == "" || req.Username == "" {
			http.Error(w, "name, host and username are required", http.StatusBadRequest)
			return
		}

		router := req.toModel(0)
		id, err := api.store.CreateRouter(router)
		if err != nil {
			api.internalError(w, "create router", err)
			return
		}
		router.ID = id
		respondJSON(w, http.StatusCreated, router)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRouter dispatches /api/v1/routers/{id} and its subresources.
func (api *API) handleRouter(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/routers/")
	idPart, sub, _ := strings.Cut(rest, "/")

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid router id", http.StatusBadRequest)
		return
	}

	router, err := api.store.GetRouter(id)
	if err == sql.ErrNoRows {
		http.Error(w, "Router not found", http.StatusNotFound)
		return
	}
	if err != nil {
		api.internalError(w, "get router", err)
		return
	}

	switch sub {
	case "":
		api.handleRouterItem(w, r, router)
	case "status":
		api.handleStatus(w, r, router)
	case "bandwidth":
		api.handleBandwidth(w, r, router)
	case "series":
		api.handleSeries(w, r, router)
	case "logs":
		api.handleLogs(w, r, router)
	case "retention":
		api.handleRetention(w, r, router)
	case "sweep":
		api.handleSweep(w, r, router)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (api *API) handleRouterItem(w http.ResponseWriter, r *http.Request, router *models.Router) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, http.StatusOK, router)

	case http.MethodPut:
		var req routerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		updated := req.toModel(router.ID)
		if updated.Password == "" {
			// Password omitted on update means keep the stored one.
			updated.Password = router.Password
		}
		if err := api.store.UpdateRouter(updated); err != nil {
			api.internalError(w, "update router", err)
			return
		}
		respondJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := api.store.DeleteRouter(router.ID); err != nil {
			api.internalError(w, "delete router", err)
			return
		}
		api.status.Forget(router.ID)
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (api *API) handleStatus(w http.ResponseWriter, r *http.Request, router *models.Router) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, api.status.Status(router.ID))
}

func (api *API) handleBandwidth(w http.ResponseWriter, r *http.Request, router *models.Router) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	window, d, ok := api.parseWindowParam(w, r)
	if !ok {
		return
	}

	stats, err := api.store.AggregateSince(router.ID, time.Now().Add(-d))
	if err != nil {
		api.internalError(w, "aggregate bandwidth", err)
		return
	}
	if stats == nil {
		stats = []models.IPStat{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"router_id": router.ID,
		"window":    window,
		"stats":     stats,
		"count":     len(stats),
	})
}

func (api *API) handleSeries(w http.ResponseWriter, r *http.Request, router *models.Router) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ip := r.URL.Query().Get("ip")
	if ip == "" {
		http.Error(w, "ip query parameter is required", http.StatusBadRequest)
		return
	}

	window, d, ok := api.parseWindowParam(w, r)
	if !ok {
		return
	}

	samples, err := api.store.SamplesSince(router.ID, ip, time.Now().Add(-d))
	if err != nil {
		api.internalError(w, "query samples", err)
		return
	}

	points := bandwidth.BuildRateSeries(samples)
	if points == nil {
		// An empty window is a valid result, not a failure.
		points = []models.RateSeriesPoint{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"router_id": router.ID,
		"ip":        ip,
		"window":    window,
		"points":    points,
		"count":     len(points),
	})
}

func (api *API) handleLogs(w http.ResponseWriter, r *http.Request, router *models.Router) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	entries, err := api.store.Logs(router.ID, limit, offset)
	if err != nil {
		api.internalError(w, "query logs", err)
		return
	}
	if entries == nil {
		entries = []models.LogEntry{}
	}

	total, err := api.store.CountLogs(router.ID)
	if err != nil {
		api.internalError(w, "count logs", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"router_id": router.ID,
		"logs":      entries,
		"count":     len(entries),
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

func (api *API) handleRetention(w http.ResponseWriter, r *http.Request, router *models.Router) {
	switch r.Method {
	case http.MethodGet:
		setting, err := api.store.GetRetention(router.ID)
		if err != nil {
			api.internalError(w, "get retention", err)
			return
		}
		respondJSON(w, http.StatusOK, setting)

	case http.MethodPut:
		var req struct {
			Days int `json:"days"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		if err := api.store.SetRetention(router.ID, req.Days); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// A shrunken window takes effect immediately.
		deleted, err := api.store.Sweep(router.ID, time.Now())
		if err != nil {
			api.internalError(w, "sweep after retention update", err)
			return
		}
		metrics.RowsSwept.Add(float64(deleted))

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"router_id": router.ID,
			"days":      req.Days,
			"deleted":   deleted,
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (api *API) handleSweep(w http.ResponseWriter, r *http.Request, router *models.Router) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	deleted, err := api.store.Sweep(router.ID, time.Now())
	if err != nil {
		api.internalError(w, "sweep", err)
		return
	}
	metrics.RowsSwept.Add(float64(deleted))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"router_id": router.ID,
		"deleted":   deleted,
	})
}

func (api *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dbStatus := "connected"
	status := "healthy"
	if err := api.store.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		status = "unhealthy"
	}

	response := map[string]interface{}{
		"status":   status,
		"database": dbStatus,
	}

	// Best-effort daemon self-stats; omitted rather than failing health.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		response["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		response["memory_used_percent"] = vm.UsedPercent
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, response)
}

func (api *API) parseWindowParam(w http.ResponseWriter, r *http.Request) (string, time.Duration, bool) {
	window := r.URL.Query().Get("window")
	if window == "" {
		window = "1h"
	}
	d, err := bandwidth.ParseWindow(window)
	if err != nil {
		http.Error(w, err.Error()+"; valid windows: "+strings.Join(bandwidth.WindowKeys(), " "), http.StatusBadRequest)
		return "", 0, false
	}
	return window, d, true
}

func (api *API) internalError(w http.ResponseWriter, op string, err error) {
	api.log.Error(op+" failed", "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

type routerRequest struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Enabled  *bool  `json:"enabled"`
}

func (r routerRequest) toModel(id int64) *models.Router {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return &models.Router{
		ID:       id,
		Name:     r.Name,
		Host:     r.Host,
		Port:     r.Port,
		Username: r.Username,
		Password: r.Password,
		Enabled:  enabled,
	}
}

func respondJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}
