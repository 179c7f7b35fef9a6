package listings

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Get("/counties", h.Counties)
	r.Get("/pdf-links/{county}", h.PDFLinks)
	r.Get("/tax-sale-listings/{county}", h.TaxSaleListings)
	r.Get("/cached-properties", h.CachedProperties)
	r.Get("/database-stats", h.DatabaseStats)
	r.Get("/properties/near", h.PropertiesNear)

	r.Post("/clear-cache", h.ClearCache)
	r.Post("/force-refresh/{county}", h.ForceRefresh)
	r.Post("/geocode", h.Geocode)
	r.Post("/test-clean-address", h.TestCleanAddress)

	return r
}
