package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bazaar/backend/internal/middleware"
	"github.com/bazaar/backend/internal/models"
	"github.com/bazaar/backend/internal/services"
	"github.com/bazaar/backend/internal/storage"
)

type failingQueryStore struct {
	*storage.MemoryListingStore
	fail bool
}

func (s *failingQueryStore) Query(ctx context.Context, q services.FetchQuery) ([]*models.Listing, error) {
	if s.fail {
		return nil, errors.New("connection refused")
	}
	return s.MemoryListingStore.Query(ctx, q)
}

// testAuth treats the bearer token as the user ID.
func testAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if uid == "" {
			writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authorization header required"))
			return
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), uid)))
	})
}

type testAPI struct {
	router http.Handler
	store  *failingQueryStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zap.NewNop()
	store := &failingQueryStore{MemoryListingStore: storage.NewMemoryListingStore()}
	favorites := storage.NewMemoryFavoriteStore()
	blobs := storage.NewInlineBlobStore(0)
	cache, err := storage.NewFilePreferenceCache(t.TempDir())
	require.NoError(t, err)

	ingest := services.NewIngestionPipeline(services.IngestionDeps{
		Store:  store,
		Blobs:  blobs,
		Logger: logger,
	}, services.DefaultIngestionConfig())
	query := services.NewQueryPipeline(store, nil, logger, 0, 0)
	listingSvc := services.NewListingService(store, blobs, favorites, nil, logger)

	router := NewRouter(RouterConfig{
		Listings:     NewListingHandler(ingest, query, listingSvc, logger, 120),
		Favorites:    NewFavoriteHandler(services.NewFavoriteService(favorites, store, logger), logger),
		Preferences:  NewPreferenceHandler(services.NewPreferenceService(cache, storage.NewMemoryLocationStore(), nil, logger), logger),
		Authenticate: testAuth,
		Logger:       logger,
	})
	return &testAPI{router: router, store: store}
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

func (a *testAPI) do(t *testing.T, method, path, user string, body []byte, contentType string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func (a *testAPI) doJSON(t *testing.T, method, path, user string, payload interface{}) (int, envelope) {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	return a.do(t, method, path, user, body, "application/json")
}

func listingForm(t *testing.T, fields map[string]string, images int) ([]byte, string) {
	t.Helper()
	return listingFormAs(t, "images", fields, images)
}

func listingFormAs(t *testing.T, part string, fields map[string]string, images int) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for i := 0; i < images; i++ {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="photo%d.jpg"`, part, i))
		h.Set("Content-Type", "image/jpeg")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(fmt.Sprintf("image-bytes-%d", i)))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func phoneFields() map[string]string {
	return map[string]string{
		"title":        "iPhone 13",
		"description":  "128GB, blue",
		"price":        "450",
		"category":     "electronics",
		"subcategory":  "Mobile Phones",
		"location":     "Beirut, Lebanon",
		"phone_number": "+961 3 000 000",
	}
}

func (a *testAPI) createListing(t *testing.T, user string) services.IngestResult {
	t.Helper()
	body, ct := listingForm(t, phoneFields(), 2)
	code, env := a.do(t, http.MethodPost, "/api/listings", user, body, ct)
	require.Equal(t, http.StatusCreated, code, env.Error)

	var res services.IngestResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return res
}

func TestCreateListing(t *testing.T) {
	api := newTestAPI(t)

	res := api.createListing(t, "seller")
	require.Len(t, res.Images, 2)
	assert.True(t, strings.HasPrefix(res.CoverImage, "data:image/jpeg;base64,"))
	assert.Equal(t, res.Images[0], res.CoverImage)

	code, env := api.do(t, http.MethodGet, "/api/listings/"+res.ListingID, "", nil, "")
	require.Equal(t, http.StatusOK, code)
	var l models.Listing
	require.NoError(t, json.Unmarshal(env.Data, &l))
	assert.Equal(t, "seller", l.UserID)
	assert.Equal(t, "Electronics", l.Category)
	assert.Equal(t, models.StatusActive, l.Status)
}

func TestCreateListingAcceptsBracketedImageField(t *testing.T) {
	api := newTestAPI(t)

	body, ct := listingFormAs(t, "images[]", phoneFields(), 3)
	code, env := api.do(t, http.MethodPost, "/api/listings", "seller", body, ct)
	require.Equal(t, http.StatusCreated, code, env.Error)

	var res services.IngestResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Len(t, res.Images, 3)
	assert.Equal(t, res.Images[0], res.CoverImage)
}

func TestCreateListingValidation(t *testing.T) {
	api := newTestAPI(t)

	fields := phoneFields()
	fields["category"] = "services"
	fields["subcategory"] = "Cleaning"
	body, ct := listingForm(t, fields, 0)
	code, env := api.do(t, http.MethodPost, "/api/listings", "seller", body, ct)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Services listings require at least 1 images", env.Errors["images"])

	fields = phoneFields()
	fields["price"] = "cheap"
	body, ct = listingForm(t, fields, 1)
	code, env = api.do(t, http.MethodPost, "/api/listings", "seller", body, ct)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Price must be a number", env.Errors["price"])

	for _, raw := range []string{"NaN", "Inf", "+Inf", "-inf"} {
		fields = phoneFields()
		fields["price"] = raw
		body, ct = listingForm(t, fields, 1)
		code, env = api.do(t, http.MethodPost, "/api/listings", "seller", body, ct)
		assert.Equal(t, http.StatusBadRequest, code, raw)
		assert.Equal(t, "Price must be a number", env.Errors["price"], raw)
	}
	mine, err := api.store.ListByUser(context.Background(), "seller")
	require.NoError(t, err)
	assert.Empty(t, mine)

	code, env = api.do(t, http.MethodGet, "/api/listings?max_price=NaN", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Errors, "max_price")

	body, ct = listingForm(t, phoneFields(), 1)
	code, _ = api.do(t, http.MethodPost, "/api/listings", "", body, ct)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSearchListings(t *testing.T) {
	api := newTestAPI(t)
	api.createListing(t, "seller")

	code, env := api.do(t, http.MethodGet, "/api/listings?q=iphone&category=Electronics&min_price=100&max_price=500&city=beirut", "", nil, "")
	require.Equal(t, http.StatusOK, code)
	var got []models.Listing
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Len(t, got, 1)

	code, env = api.do(t, http.MethodGet, "/api/listings?max_price=100", "", nil, "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Empty(t, got)

	code, env = api.do(t, http.MethodGet, "/api/listings?min_price=abc", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Errors, "min_price")
}

func TestSearchListingsStoreErrorRendersEmpty(t *testing.T) {
	api := newTestAPI(t)
	api.createListing(t, "seller")
	api.store.fail = true

	code, env := api.do(t, http.MethodGet, "/api/listings", "", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestGetListingCountsViews(t *testing.T) {
	api := newTestAPI(t)
	res := api.createListing(t, "seller")

	api.do(t, http.MethodGet, "/api/listings/"+res.ListingID, "seller", nil, "")
	api.do(t, http.MethodGet, "/api/listings/"+res.ListingID, "buyer", nil, "")

	l, err := api.store.Get(context.Background(), res.ListingID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, l.Views)

	code, _ := api.do(t, http.MethodGet, "/api/listings/nope", "", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListingLifecycle(t *testing.T) {
	api := newTestAPI(t)
	res := api.createListing(t, "seller")
	path := "/api/listings/" + res.ListingID

	code, _ := api.doJSON(t, http.MethodPut, path, "intruder", map[string]interface{}{"title": "mine"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env := api.doJSON(t, http.MethodPut, path, "seller", map[string]interface{}{"price": 400})
	require.Equal(t, http.StatusOK, code)
	var l models.Listing
	require.NoError(t, json.Unmarshal(env.Data, &l))
	assert.Equal(t, 400.0, l.Price)

	code, _ = api.doJSON(t, http.MethodPut, path, "seller", map[string]interface{}{"owner": "x"})
	assert.Equal(t, http.StatusBadRequest, code, "unknown fields are rejected")

	code, _ = api.doJSON(t, http.MethodPost, path+"/sold", "seller", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.doJSON(t, http.MethodPost, path+"/sold", "seller", nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = api.doJSON(t, http.MethodPost, path+"/reactivate", "seller", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = api.do(t, http.MethodGet, "/api/me/listings", "seller", nil, "")
	require.Equal(t, http.StatusOK, code)
	var mine []models.Listing
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	assert.Len(t, mine, 1)

	code, _ = api.doJSON(t, http.MethodDelete, path, "seller", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(t, http.MethodGet, path, "", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestFavoriteRoutes(t *testing.T) {
	api := newTestAPI(t)
	res := api.createListing(t, "seller")
	path := "/api/listings/" + res.ListingID + "/favorite"

	code, _ := api.doJSON(t, http.MethodPost, path, "buyer", nil)
	assert.Equal(t, http.StatusCreated, code)
	code, _ = api.doJSON(t, http.MethodPost, path, "buyer", nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = api.doJSON(t, http.MethodPost, "/api/listings/missing/favorite", "buyer", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env := api.do(t, http.MethodGet, path, "buyer", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"favorited":true}`, string(env.Data))

	code, env = api.do(t, http.MethodGet, "/api/favorites/listings", "buyer", nil, "")
	require.Equal(t, http.StatusOK, code)
	var favs []models.FavoriteWithListing
	require.NoError(t, json.Unmarshal(env.Data, &favs))
	require.Len(t, favs, 1)
	assert.Equal(t, res.ListingID, favs[0].Listing.ID)

	code, _ = api.doJSON(t, http.MethodDelete, path, "buyer", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.doJSON(t, http.MethodDelete, path, "buyer", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPreferenceRoutes(t *testing.T) {
	api := newTestAPI(t)

	code, _ := api.do(t, http.MethodGet, "/api/me/location", "u1", nil, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.doJSON(t, http.MethodPut, "/api/me/location", "u1", map[string]string{"city": "Beirut", "country": "Lebanon"})
	assert.Equal(t, http.StatusOK, code)

	code, env := api.do(t, http.MethodGet, "/api/me/location", "u1", nil, "")
	require.Equal(t, http.StatusOK, code)
	var loc models.UserLocation
	require.NoError(t, json.Unmarshal(env.Data, &loc))
	assert.Equal(t, "Beirut", loc.City)

	code, _ = api.doJSON(t, http.MethodPost, "/api/me/location/resolve", "u1", map[string]float64{"latitude": 33.9, "longitude": 35.5})
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, env = api.do(t, http.MethodGet, "/api/me/language", "u1", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"language":"en"}`, string(env.Data))

	code, env = api.doJSON(t, http.MethodPut, "/api/me/language", "u1", map[string]string{"language": "de"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Errors, "language")

	code, env = api.doJSON(t, http.MethodPut, "/api/me/language", "u1", map[string]string{"language": "fr"})
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"language":"fr"}`, string(env.Data))
}

func TestCategoriesAndHealth(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(t, http.MethodGet, "/api/categories", "", nil, "")
	require.Equal(t, http.StatusOK, code)
	var cats []models.Category
	require.NoError(t, json.Unmarshal(env.Data, &cats))
	assert.Len(t, cats, len(models.Categories()))

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLiveListings(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/listings/live?category=pets"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() []models.Listing {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var env envelope
		require.NoError(t, conn.ReadJSON(&env))
		var out []models.Listing
		require.NoError(t, json.Unmarshal(env.Data, &out))
		return out
	}

	assert.Empty(t, read())

	_, err = api.store.Create(context.Background(), &models.Listing{
		Title: "Puppy", Category: "Pets", Status: models.StatusActive, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	got := read()
	require.Len(t, got, 1)
	assert.Equal(t, "Puppy", got[0].Title)
}
