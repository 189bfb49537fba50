package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cache-engine/internal/auth"
	"cache-engine/internal/cache"
	"cache-engine/internal/cache/configstore"
	"cache-engine/internal/cache/memory"
	"cache-engine/internal/common/logging"
	"cache-engine/internal/handlers"
	"cache-engine/internal/middleware"
)

const testSecret = "handlers-test-secret-long-enough!"

type testAPI struct {
	router  *mux.Router
	manager *cache.Manager
	token   string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	settings := configstore.Settings{
		L1: configstore.TierConfig{Enabled: true, MaxCapacity: 1000, MaxSizeMB: 64, DefaultTTL: 5 * time.Minute},

		CompressionAlgorithm: "balanced",
		CompressionMinBytes:  1024,
		SerializationFormat:  "json",
		MaxEntrySizeMB:       1,

		SweepInterval:     time.Hour,
		L3CleanupInterval: time.Hour,
		L3CleanupBatch:    500,
		PromoteFromL3:     true,
	}

	cfg, err := configstore.New(settings)
	require.NoError(t, err)

	manager, err := cache.NewManager(cache.Options{
		Stores: []cache.Store{memory.New(memory.Config{MaxCapacity: 1000, Shards: 4})},
		Config: cfg,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		manager.Stop(ctx)
	})

	authHandler := auth.New(testSecret)
	h := handlers.New(manager, logging.GetGlobalLogger())

	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	router.HandleFunc("/health", h.Health).Methods("GET")

	api := router.PathPrefix("/cache").Subrouter()
	api.Use(authHandler.RequireAuth)
	api.HandleFunc("/entries/{key}", h.GetEntry).Methods("GET")
	api.HandleFunc("/entries/{key}", h.PutEntry).Methods("PUT")
	api.HandleFunc("/entries/{key}", h.DeleteEntry).Methods("DELETE")
	api.HandleFunc("/invalidate", h.Invalidate).Methods("POST")
	api.HandleFunc("/warm", h.Warm).Methods("POST")
	api.HandleFunc("/warm/{id}", h.GetWarmJob).Methods("GET")
	api.HandleFunc("/warm/{id}", h.CancelWarmJob).Methods("DELETE")
	api.HandleFunc("/status", h.GetStatus).Methods("GET")
	api.HandleFunc("/config", h.GetConfig).Methods("GET")
	api.HandleFunc("/config", h.UpdateConfig).Methods("PUT")

	token, err := authHandler.IssueToken("test-client", time.Minute)
	require.NoError(t, err)

	return &testAPI{router: router, manager: manager, token: token}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+a.token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestPutGetDeleteEntry(t *testing.T) {
	api := newTestAPI(t)

	put := api.do(t, http.MethodPut, "/cache/entries/customer:42", map[string]interface{}{
		"value":       map[string]interface{}{"name": "Acme Corp"},
		"ttl_seconds": 60,
		"type_tag":    "customer_profile",
	})
	require.Equal(t, http.StatusCreated, put.Code)
	body := decodeBody(t, put)
	assert.Equal(t, true, body["created"])
	assert.Equal(t, []interface{}{"L1_MEMORY"}, body["levels_stored"])

	// Overwriting an existing key is a 200
	put = api.do(t, http.MethodPut, "/cache/entries/customer:42", map[string]interface{}{
		"value":       map[string]interface{}{"name": "Acme Corp v2"},
		"ttl_seconds": 60,
	})
	require.Equal(t, http.StatusOK, put.Code)

	get := api.do(t, http.MethodGet, "/cache/entries/customer:42", nil)
	require.Equal(t, http.StatusOK, get.Code)
	body = decodeBody(t, get)
	assert.Equal(t, true, body["found"])
	value := body["value"].(map[string]interface{})
	assert.Equal(t, "Acme Corp v2", value["name"])

	del := api.do(t, http.MethodDelete, "/cache/entries/customer:42", nil)
	require.Equal(t, http.StatusOK, del.Code)
	body = decodeBody(t, del)
	assert.Equal(t, []interface{}{"L1_MEMORY"}, body["deleted_from_levels"])

	// Idempotent: deleting again still succeeds, with nothing removed
	del = api.do(t, http.MethodDelete, "/cache/entries/customer:42", nil)
	require.Equal(t, http.StatusOK, del.Code)
	body = decodeBody(t, del)
	assert.Empty(t, body["deleted_from_levels"])
}

func TestGetEntryNotFound(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/cache/entries/absent", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody(t, rec)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "not_found", errBody["type"])
	assert.NotEmpty(t, errBody["request_id"])
}

func TestPutEntryValidation(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPut, "/cache/entries/k", map[string]interface{}{
		"value":        "x",
		"cache_levels": []string{"L9_TAPE"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPut, "/cache/entries/k", map[string]interface{}{
		"value":       "x",
		"ttl_seconds": -5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPut, "/cache/entries/k", map[string]interface{}{
		"value":                "x",
		"serialization_format": "xml",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutEntryTooLarge(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPut, "/cache/entries/big", map[string]interface{}{
		"value":               strings.Repeat("x", 2*1024*1024),
		"compression_enabled": false,
	})
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	body := decodeBody(t, rec)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "entry_too_large", errBody["code"])
}

func TestInvalidate(t *testing.T) {
	api := newTestAPI(t)

	for i := 0; i < 3; i++ {
		rec := api.do(t, http.MethodPut, fmt.Sprintf("/cache/entries/user:%d", i), map[string]interface{}{
			"value": "x", "ttl_seconds": 60,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := api.do(t, http.MethodPost, "/cache/invalidate", map[string]interface{}{
		"pattern": "user:*",
		"reason":  "profile schema migration",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(3), body["invalidated_count"])

	rec = api.do(t, http.MethodPost, "/cache/invalidate", map[string]interface{}{"pattern": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWarmJobLifecycle(t *testing.T) {
	api := newTestAPI(t)

	// Seed a key so eager warming has something to touch
	rec := api.do(t, http.MethodPut, "/cache/entries/user:1", map[string]interface{}{
		"value": "x", "ttl_seconds": 60,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPost, "/cache/warm", map[string]interface{}{
		"keys":     []string{"user:1"},
		"strategy": "eager",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decodeBody(t, rec)
	jobID := body["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, float64(1), body["estimated_keys"])

	require.Eventually(t, func() bool {
		rec := api.do(t, http.MethodGet, "/cache/warm/"+jobID, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var status map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			return false
		}
		return status["status"] == "completed"
	}, 2*time.Second, 10*time.Millisecond)

	// A finished job can no longer be cancelled
	rec = api.do(t, http.MethodDelete, "/cache/warm/"+jobID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/cache/warm/no-such-job", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWarmScheduledCancel(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/cache/warm", map[string]interface{}{
		"keys":     []string{"user:1"},
		"strategy": "scheduled",
		"schedule": "@every 1h",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobID := decodeBody(t, rec)["job_id"].(string)

	rec = api.do(t, http.MethodDelete, "/cache/warm/"+jobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["cancelled"])
}

func TestWarmValidation(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/cache/warm", map[string]interface{}{
		"strategy": "eager",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/cache/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["healthy"])
	tiers := body["tiers"].([]interface{})
	require.Len(t, tiers, 1)
}

func TestConfigRoundTrip(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/cache/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "balanced", body["compression_algorithm"])

	// Patch one field; the rest of the snapshot carries over
	rec = api.do(t, http.MethodPut, "/cache/config", map[string]interface{}{
		"compression_min_bytes": 4096,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["applied"])
	assert.Equal(t, false, body["restart_required"])

	rec = api.do(t, http.MethodGet, "/cache/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(4096), decodeBody(t, rec)["compression_min_bytes"])
}

func TestConfigRejectsInvalidUpdate(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPut, "/cache/config", map[string]interface{}{
		"compression_algorithm": "brotli",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decodeBody(t, rec)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "config", errBody["type"])

	// The running configuration is untouched
	rec = api.do(t, http.MethodGet, "/cache/config", nil)
	assert.Equal(t, "balanced", decodeBody(t, rec)["compression_algorithm"])
}

func TestConfigStructuralChangeRequiresRestart(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPut, "/cache/config", map[string]interface{}{
		"l2": map[string]interface{}{"enabled": true},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["restart_required"])
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/cache/status", nil)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Health stays open for load balancer probes
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
