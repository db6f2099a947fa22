package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/bazaar/backend/internal/metrics"
	"github.com/bazaar/backend/internal/middleware"
)

type RouterConfig struct {
	Listings    *ListingHandler
	Favorites   *FavoriteHandler
	Preferences *PreferenceHandler
	// Authenticate guards the authenticated routes and must put the user ID
	// in the request context.
	Authenticate func(http.Handler) http.Handler
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger, cfg.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	authenticate := cfg.Authenticate

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", ListCategories)

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", cfg.Listings.SearchListings)
			r.Get("/live", cfg.Listings.LiveListings)
			r.With(middleware.Optional(authenticate)).Get("/{listingId}", cfg.Listings.GetListing)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)

				r.Post("/", cfg.Listings.CreateListing)
				r.Put("/{listingId}", cfg.Listings.UpdateListing)
				r.Delete("/{listingId}", cfg.Listings.DeleteListing)
				r.Post("/{listingId}/sold", cfg.Listings.MarkSold)
				r.Post("/{listingId}/reactivate", cfg.Listings.Reactivate)

				r.Get("/{listingId}/favorite", cfg.Favorites.FavoriteStatus)
				r.Post("/{listingId}/favorite", cfg.Favorites.AddFavorite)
				r.Delete("/{listingId}/favorite", cfg.Favorites.RemoveFavorite)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/favorites", cfg.Favorites.ListFavorites)
			r.Get("/favorites/listings", cfg.Favorites.ListFavoriteListings)

			r.Route("/me", func(r chi.Router) {
				r.Get("/listings", cfg.Listings.ListMyListings)
				r.Get("/location", cfg.Preferences.GetLocation)
				r.Put("/location", cfg.Preferences.SetLocation)
				r.Post("/location/resolve", cfg.Preferences.ResolveLocation)
				r.Get("/language", cfg.Preferences.GetLanguage)
				r.Put("/language", cfg.Preferences.SetLanguage)
			})
		})
	})

	return r
}
