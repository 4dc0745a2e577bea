package procurement

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*fixture, http.Handler) {
	t.Helper()
	f := newFixture(t, nil)
	r := chi.NewRouter()
	r.Route("/procurement", NewHandler(nil, f.svc).MountRoutes)
	return f, r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerScreensAndQueue(t *testing.T) {
	_, h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodGet, "/procurement/screens", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var screens struct {
		Screens []struct {
			Name string `json:"name"`
		} `json:"screens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &screens))
	require.NotEmpty(t, screens.Screens)

	rec = doJSON(t, h, http.MethodGet, "/procurement/screens/indent-approval?page=1&per_page=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Pending []map[string]any `json:"pending"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Pending, 1)

	rec = doJSON(t, h, http.MethodGet, "/procurement/screens/unknown", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestHandlerCompleteAndValidation(t *testing.T) {
	f, h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/procurement/screens/indent-approval/IN-0001/complete", map[string]any{
		"payload": map[string]any{"vendorType": "Regular", "approvedQuantity": 10},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result CompleteResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, []int{2}, result.Planned)
	require.Equal(t, "Regular", f.indent(t, "IN-0001").Field("vendorType"))

	rec = doJSON(t, h, http.MethodPost, "/procurement/screens/indent-approval/IN-0001/complete", map[string]any{
		"payload": map[string]any{"vendorType": "Regular", "approvedQuantity": 10},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/procurement/issues", bytes.NewBufferString(`{"products":[],"bogus":1}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerCreateIssueAndNextNumber(t *testing.T) {
	_, h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/procurement/issues", CreateIssueInput{Products: []IssueLine{{ProductName: "Grease", Quantity: 1}}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var issue Issue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issue))
	require.Equal(t, "IS-0001", issue.IssueNo)

	rec = doJSON(t, h, http.MethodGet, "/procurement/pos/next-number?date=2025-05-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "JJSPL/STORES/25-26/1")

	rec = doJSON(t, h, http.MethodGet, "/procurement/pos/next-number?date=someday", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/procurement/lifts/pending/IN-4040", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/procurement/master", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Acme Bearings")
}
