package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bazaar/backend/internal/middleware"
	"github.com/bazaar/backend/internal/models"
	"github.com/bazaar/backend/internal/services"
)

type FavoriteHandler struct {
	favorites *services.FavoriteService
	logger    *zap.Logger
}

func NewFavoriteHandler(favorites *services.FavoriteService, logger *zap.Logger) *FavoriteHandler {
	return &FavoriteHandler{
		favorites: favorites,
		logger:    logger.Named("favorite_handler"),
	}
}

func (h *FavoriteHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	listingID := chi.URLParam(r, "listingId")

	favorite, err := h.favorites.Add(r.Context(), userID, listingID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAlreadyFavorited):
			writeJSON(w, http.StatusConflict, models.NewErrorResponse("Listing already favorited"))
		case errors.Is(err, services.ErrListingNotFound):
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Listing not found"))
		default:
			h.logger.Error("add favorite", zap.String("listing_id", listingID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to add favorite"))
		}
		return
	}

	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(favorite))
}

func (h *FavoriteHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	listingID := chi.URLParam(r, "listingId")

	if err := h.favorites.Remove(r.Context(), userID, listingID); err != nil {
		if errors.Is(err, services.ErrFavoriteNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Favorite not found"))
			return
		}
		h.logger.Error("remove favorite", zap.String("listing_id", listingID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to remove favorite"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Favorite removed successfully"}))
}

func (h *FavoriteHandler) FavoriteStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	listingID := chi.URLParam(r, "listingId")

	ok, err := h.favorites.IsFavorited(r.Context(), userID, listingID)
	if err != nil {
		h.logger.Error("favorite status", zap.String("listing_id", listingID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to check favorite"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]bool{"favorited": ok}))
}

func (h *FavoriteHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	favorites, err := h.favorites.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("list favorites", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to list favorites"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(favorites))
}

func (h *FavoriteHandler) ListFavoriteListings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	listings, err := h.favorites.ListWithListings(r.Context(), userID)
	if err != nil {
		h.logger.Error("list favorite listings", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to list favorites"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(listings))
}
