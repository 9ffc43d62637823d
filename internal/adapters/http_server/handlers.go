// internal/adapters/http_server/handlers.go
package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"gto_dupfinder/internal/adapters/export"
	"gto_dupfinder/internal/app"
	"gto_dupfinder/internal/domain"
)

type Handlers struct {
	Scans   *app.ScanService
	Catalog domain.CatalogClient
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/scans", h.startScan)
	s.mux.Get("/v1/scans", h.listScans)
	s.mux.Get("/v1/scans/{id}", h.scanStatus)
	s.mux.Post("/v1/scans/{id}/cancel", h.cancelScan)
	s.mux.Get("/v1/scans/{id}/export", h.exportScan)
	s.mux.Get("/v1/countries", h.countries)
	s.mux.Get("/v1/cities", h.cities)
	s.mux.Get("/v1/stats", h.stats)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

type startScanRequest struct {
	CityIDs   []int64         `json:"city_ids"`
	CityID    *int64          `json:"city_id"` // legacy single-city form
	CountryID *int64          `json:"country_id"`
	RPS       float64         `json:"rps"`
	ScanType  domain.ScanType `json:"scan_type"`
}

func (h *Handlers) startScan(w http.ResponseWriter, r *http.Request) {
	var req startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "request body must be JSON")
		return
	}
	cities := req.CityIDs
	if len(cities) == 0 && req.CityID != nil {
		cities = []int64{*req.CityID}
	}

	id, err := h.Scans.Start(domain.Scope{CityIDs: cities, CountryID: req.CountryID}, req.RPS, req.ScanType)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrEmptyScope):
			writeProblem(w, http.StatusBadRequest, "Invalid scope", err.Error())
		case errors.Is(err, app.ErrBadScanType):
			writeProblem(w, http.StatusBadRequest, "Invalid scan type", err.Error())
		default:
			writeProblem(w, http.StatusInternalServerError, "Scan start failed", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"scan_id": id, "status": domain.StatusQueued})
}

func (h *Handlers) scanStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.Scans.Status(chi.URLParam(r, "id"))
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "scan not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) cancelScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.Scans.Cancel(id) {
		writeJSON(w, http.StatusOK, map[string]string{"scan_id": id, "status": "cancelling"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"scan_id": id, "status": "no_active_scan"})
}

func (h *Handlers) listScans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": h.Scans.History()})
}

func (h *Handlers) exportScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := h.Scans.Status(id)
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "scan not found")
		return
	}
	if snap.Status != domain.StatusDone {
		writeProblem(w, http.StatusConflict, "Not ready", "scan has no results to export")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", export.Filename(snap.Type)))
	if err := export.WriteXLSX(w, snap.Type, snap.Rows); err != nil {
		log.Error().Err(err).Str("scan", id).Msg("xlsx export failed")
	}
}

func (h *Handlers) countries(w http.ResponseWriter, r *http.Request) {
	out, err := h.Catalog.Countries(r.Context())
	if err != nil {
		upstreamProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handlers) cities(w http.ResponseWriter, r *http.Request) {
	countryID, err := strconv.ParseInt(r.URL.Query().Get("country_id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid country_id", "country_id must be a number")
		return
	}
	out, err := h.Catalog.Cities(r.Context(), countryID)
	if err != nil {
		upstreamProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Catalog.Stats())
}

func upstreamProblem(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrUnauthorized) {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "upstream rejected the API key")
		return
	}
	writeProblem(w, http.StatusBadGateway, "Upstream error", err.Error())
}
