package handlers

import (
	"net/http"

	"github.com/bazaar/backend/internal/models"
)

func ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.Categories()))
}
