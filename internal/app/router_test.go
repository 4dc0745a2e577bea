package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/procureflow/internal/observability"
	"github.com/odyssey-erp/procureflow/internal/shared"
)

func TestRouterHealthAndMetrics(t *testing.T) {
	cfg := &Config{AppEnv: "production", AppRequestTimeout: 0}
	router := NewRouter(RouterParams{Config: cfg, Metrics: observability.NewMetrics()})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "procureflow_http_requests_total")
}

func TestActorMiddleware(t *testing.T) {
	var actor string
	r := chi.NewRouter()
	r.Use(actorMiddleware)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		actor = shared.ActorFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, " Meena ")
	r.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "Meena", actor)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{SheetsBackend: "memory", SheetsCache: "memory", AttachmentsBackend: "memory", CostingRoundPlaces: 2}
	require.NoError(t, valid.Validate())

	bad := valid
	bad.SheetsBackend = "sheets-api"
	require.Error(t, bad.Validate())

	bad = valid
	bad.AttachmentsBackend = "minio"
	require.Error(t, bad.Validate())

	bad = valid
	bad.AttachmentsBackend = "gcs"
	require.Error(t, bad.Validate())

	bad = valid
	bad.SheetsCache = "memcached"
	require.Error(t, bad.Validate())
}
