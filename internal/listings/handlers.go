package listings

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/go-chi/chi/v5"
	"github.com/golang/geo/s2"

	"github.com/taxsalemap/backend/internal/address"
	"github.com/taxsalemap/backend/internal/geocode"
)

const earthRadiusKm = 6371.01

// Handler serves the listings API. It owns the refresh service and the
// geocoder so tests can stand it up against fakes.
type Handler struct {
	service  *Service
	geocoder *geocode.Geocoder
}

func NewHandler(service *Service, geocoder *geocode.Geocoder) *Handler {
	return &Handler{service: service, geocoder: geocoder}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// GET /counties
func (h *Handler) Counties(w http.ResponseWriter, r *http.Request) {
	type countyInfo struct {
		Key      string `json:"key"`
		Name     string `json:"name"`
		State    string `json:"state"`
		DataType string `json:"dataType"`
		Status   string `json:"status"`
	}
	out := make([]countyInfo, 0, len(h.service.cfg.Counties))
	for key, c := range h.service.cfg.Counties {
		status := c.Status
		if status == "" {
			status = "active"
		}
		out = append(out, countyInfo{Key: key, Name: c.Name, State: c.State, DataType: c.DataType, Status: status})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /pdf-links/{county}
func (h *Handler) PDFLinks(w http.ResponseWriter, r *http.Request) {
	county := chi.URLParam(r, "county")
	links, err := h.service.DiscoverLinks(r.Context(), county)
	if err != nil {
		h.countyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"taxSaleUrl":   links.TaxSaleURL,
		"photoListUrl": links.PhotoListURL,
	})
}

// GET /tax-sale-listings/{county}?forceRefresh=true
func (h *Handler) TaxSaleListings(w http.ResponseWriter, r *http.Request) {
	county := chi.URLParam(r, "county")
	force := r.URL.Query().Get("forceRefresh") == "true"

	result, err := h.service.Refresh(r.Context(), county, force)
	if err != nil {
		h.countyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /force-refresh/{county}
func (h *Handler) ForceRefresh(w http.ResponseWriter, r *http.Request) {
	county := chi.URLParam(r, "county")
	result, err := h.service.Refresh(r.Context(), county, true)
	if err != nil {
		h.countyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /cached-properties
func (h *Handler) CachedProperties(w http.ResponseWriter, r *http.Request) {
	props, err := AllProperties()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load properties")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(props),
		"properties": toListings(props),
	})
}

// GET /database-stats
func (h *Handler) DatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats, err := Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// POST /clear-cache
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := ClearAll(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"clearedAt": time.Now(),
	})
}

// POST /geocode with body {"address": "...", "county": "chatham"}
func (h *Handler) Geocode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string `json:"address"`
		County  string `json:"county"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	region, state := "Chatham County", "GA"
	if body.County != "" {
		if c, err := h.service.County(body.County); err == nil {
			region, state = c.Name, c.State
		}
	}
	result := h.geocoder.Lookup(r.Context(), body.Address, region, state)
	writeJSON(w, http.StatusOK, result)
}

// POST /test-clean-address with body {"address": "..."}
func (h *Handler) TestCleanAddress(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	cleaned := address.Clean(body.Address)
	writeJSON(w, http.StatusOK, map[string]string{
		"original": body.Address,
		"cleaned":  cleaned.Cleaned,
		"zipCode":  cleaned.ZipCode,
	})
}

// GET /properties/near?lat=&lng=&radius_km=
func (h *Handler) PropertiesNear(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	radiusKm := 5.0
	if rad := r.URL.Query().Get("radius_km"); rad != "" {
		radiusKm, err1 = strconv.ParseFloat(rad, 64)
		if err1 != nil || radiusKm <= 0 {
			writeError(w, http.StatusBadRequest, "radius_km must be a positive number")
			return
		}
	}

	props, err := AllProperties()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load properties")
		return
	}

	center := s2.LatLngFromDegrees(lat, lng)
	type nearby struct {
		Listing
		DistanceKm float64 `json:"distanceKm"`
	}
	var out []nearby
	for _, p := range props {
		if p.Latitude == nil || p.Longitude == nil {
			continue
		}
		point := s2.LatLngFromDegrees(*p.Latitude, *p.Longitude)
		km := center.Distance(point).Radians() * earthRadiusKm
		if km <= radiusKm {
			out = append(out, nearby{Listing: listingFromProperty(p), DistanceKm: km})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(out),
		"radiusKm":   radiusKm,
		"properties": out,
	})
}

func (h *Handler) countyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownCounty):
		writeError(w, http.StatusNotFound, "unknown county")
	case errors.Is(err, ErrMaintenance):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":             "county data source is under maintenance",
			"availableCounties": h.availableCounties(),
		})
	default:
		log.WithError(err).Error("refresh failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) availableCounties() []string {
	var keys []string
	for key, c := range h.service.cfg.Counties {
		if c.Status != "maintenance" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
