package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/bazaar/backend/internal/middleware"
	"github.com/bazaar/backend/internal/models"
	"github.com/bazaar/backend/internal/services"
)

type PreferenceHandler struct {
	prefs  *services.PreferenceService
	logger *zap.Logger
}

func NewPreferenceHandler(prefs *services.PreferenceService, logger *zap.Logger) *PreferenceHandler {
	return &PreferenceHandler{
		prefs:  prefs,
		logger: logger.Named("preference_handler"),
	}
}

func (h *PreferenceHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	loc, err := h.prefs.GetLocation(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrLocationNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("No location saved"))
			return
		}
		h.logger.Error("get location", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to get location"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(loc))
}

func (h *PreferenceHandler) SetLocation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.SetLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	loc, err := h.prefs.SetLocation(r.Context(), userID, &req)
	if err != nil {
		h.writeLocationError(w, userID, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(loc))
}

// ResolveLocation turns device coordinates into a saved city/state/country.
func (h *PreferenceHandler) ResolveLocation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.ResolveLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	loc, err := h.prefs.ResolveLocation(r.Context(), userID, req.Latitude, req.Longitude)
	if err != nil {
		h.writeLocationError(w, userID, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(loc))
}

func (h *PreferenceHandler) writeLocationError(w http.ResponseWriter, userID string, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(verr.Fields))
	case errors.Is(err, services.ErrLocationUnresolved):
		writeJSON(w, http.StatusUnprocessableEntity, models.NewErrorResponse("Could not determine a place for those coordinates"))
	case errors.Is(err, services.ErrGeocoderUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, models.NewErrorResponse("Location lookup is unavailable"))
	default:
		h.logger.Error("save location", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to save location"))
	}
}

func (h *PreferenceHandler) GetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := h.prefs.GetLanguage(r.Context(), middleware.GetUserID(r.Context()))
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"language": lang}))
}

func (h *PreferenceHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.SetLanguageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	lang, err := h.prefs.SetLanguage(r.Context(), userID, req.Language)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedLanguage) {
			writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(map[string]string{
				"language": "Language must be one of en, ar, fr",
			}))
			return
		}
		h.logger.Error("set language", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to save language"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"language": lang}))
}
