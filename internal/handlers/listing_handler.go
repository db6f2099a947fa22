package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bazaar/backend/internal/middleware"
	"github.com/bazaar/backend/internal/models"
	"github.com/bazaar/backend/internal/services"
)

const (
	liveWriteTimeout = 10 * time.Second
	livePingInterval = 30 * time.Second
)

type ListingHandler struct {
	ingest         *services.IngestionPipeline
	query          *services.QueryPipeline
	listings       *services.ListingService
	logger         *zap.Logger
	maxUploadBytes int64
	upgrader       websocket.Upgrader
}

func NewListingHandler(
	ingest *services.IngestionPipeline,
	query *services.QueryPipeline,
	listings *services.ListingService,
	logger *zap.Logger,
	maxUploadSizeMB int64,
) *ListingHandler {
	return &ListingHandler{
		ingest:         ingest,
		query:          query,
		listings:       listings,
		logger:         logger.Named("listing_handler"),
		maxUploadBytes: maxUploadSizeMB << 20,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// CreateListing accepts multipart/form-data: the listing fields, any number
// of "images" (or "images[]") parts in display order, and an optional
// "video" part.
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Upload too large or invalid form data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := &services.IngestRequest{
		UserID: userID,
		Listing: models.CreateListingRequest{
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
			Currency:    r.FormValue("currency"),
			Category:    r.FormValue("category"),
			Subcategory: r.FormValue("subcategory"),
			Location:    r.FormValue("location"),
			PhoneNumber: r.FormValue("phone_number"),
		},
	}

	price, err := optionalFloat(r.FormValue("price"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(map[string]string{"price": "Price must be a number"}))
		return
	}
	req.Listing.Price = price

	for _, fh := range imageParts(r.MultipartForm) {
		data, err := readPart(fh)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Could not read image "+fh.Filename))
			return
		}
		req.Images = append(req.Images, models.ImageInput{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	if files := r.MultipartForm.File["video"]; len(files) > 0 {
		data, err := readPart(files[0])
		if err != nil {
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Could not read video"))
			return
		}
		req.Video = &models.VideoInput{
			Filename:    files[0].Filename,
			ContentType: files[0].Header.Get("Content-Type"),
			Data:        data,
		}
	}

	result, err := h.ingest.Create(r.Context(), req)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(verr.Fields))
			return
		}
		h.logger.Error("create listing", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to create listing, please try again"))
		return
	}

	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(result))
}

// imageParts returns the "images" parts followed by any "images[]" parts.
func imageParts(form *multipart.Form) []*multipart.FileHeader {
	parts := append([]*multipart.FileHeader(nil), form.File["images"]...)
	return append(parts, form.File["images[]"]...)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// SearchListings never fails on a backing store error: it logs and answers
// with an empty list, which clients render as an empty state.
func (h *ListingHandler) SearchListings(w http.ResponseWriter, r *http.Request) {
	filter, errs := parseSearchFilter(r)
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	listings, err := h.query.Search(r.Context(), filter)
	if err != nil {
		h.logger.Warn("search listings", zap.Error(err))
		listings = []*models.Listing{}
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(listings))
}

func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "listingId")

	listing, err := h.listings.Get(r.Context(), listingID)
	if err != nil {
		if errors.Is(err, services.ErrListingNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Listing not found"))
			return
		}
		h.logger.Error("get listing", zap.String("listing_id", listingID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to get listing"))
		return
	}

	h.listings.RecordView(r.Context(), listing, middleware.GetUserID(r.Context()))
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(listing))
}

func (h *ListingHandler) ListMyListings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	listings, err := h.listings.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("list user listings", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to list listings"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(listings))
}

func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	listingID := chi.URLParam(r, "listingId")

	var req models.UpdateListingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	listing, err := h.listings.Update(r.Context(), userID, listingID, &req)
	if err != nil {
		h.writeOwnerError(w, "update", listingID, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(listing))
}

func (h *ListingHandler) MarkSold(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.listings.MarkSold)
}

func (h *ListingHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.listings.Reactivate)
}

func (h *ListingHandler) changeStatus(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID, id string) (*models.Listing, error)) {
	userID := middleware.GetUserID(r.Context())
	listingID := chi.URLParam(r, "listingId")

	listing, err := fn(r.Context(), userID, listingID)
	if err != nil {
		h.writeOwnerError(w, "change status of", listingID, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(listing))
}

func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	listingID := chi.URLParam(r, "listingId")

	if err := h.listings.Delete(r.Context(), userID, listingID); err != nil {
		h.writeOwnerError(w, "delete", listingID, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Listing deleted successfully"}))
}

func (h *ListingHandler) writeOwnerError(w http.ResponseWriter, action, listingID string, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(verr.Fields))
	case errors.Is(err, services.ErrListingNotFound):
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Listing not found"))
	case errors.Is(err, services.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Not authorized to "+action+" this listing"))
	case errors.Is(err, services.ErrInvalidStatusTransition):
		writeJSON(w, http.StatusConflict, models.NewErrorResponse("Listing already has that status"))
	default:
		h.logger.Error(action+" listing", zap.String("listing_id", listingID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to "+action+" listing"))
	}
}

// LiveListings upgrades to a websocket and pushes the full filtered result
// set whenever matching listings change.
func (h *ListingHandler) LiveListings(w http.ResponseWriter, r *http.Request) {
	filter, errs := parseSearchFilter(r)
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client only ever sends control frames; reading surfaces the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	updates, err := h.query.Watch(ctx, filter)
	if err != nil {
		h.logger.Warn("watch listings", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "live updates unavailable"),
			time.Now().Add(liveWriteTimeout))
		return
	}

	ping := time.NewTicker(livePingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteTimeout)); err != nil {
				return
			}
		case listings, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteJSON(models.NewSuccessResponse(listings)); err != nil {
				if !strings.Contains(err.Error(), "close") {
					h.logger.Debug("live write failed", zap.Error(err))
				}
				return
			}
		}
	}
}
