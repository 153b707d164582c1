//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/census-cli/internal/model"
	"github.com/sells-group/census-cli/internal/store"
)

// seedStore returns a migrated SQLite store holding one complete run.
func seedStore(t *testing.T) (store.Store, string) {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	run, err := st.CreateRun(ctx, "85", "85年AA290005")
	require.NoError(t, err)
	require.NoError(t, st.SaveAggregate(ctx, run.ID, model.FieldClassification, map[string]int64{"D": 100, "X": 30}))
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunSummary{Records: 3, AssetTotal: 130}))

	_, err = st.CreateRun(ctx, "95", "95年AA290007")
	require.NoError(t, err)

	return st, run.ID
}

func serve(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	st, _ := seedStore(t)
	rr := serve(t, newRouter(st), "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_ListRuns(t *testing.T) {
	st, _ := seedStore(t)
	h := newRouter(st)

	rr := serve(t, h, "/runs")
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)

	rr = serve(t, h, "/runs?year=85&status=complete")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "85年AA290005", runs[0].Dataset)

	rr = serve(t, h, "/runs?year=90")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())

	rr = serve(t, h, "/runs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_GetRun(t *testing.T) {
	st, runID := seedStore(t)
	h := newRouter(st)

	rr := serve(t, h, "/runs/"+runID)
	require.Equal(t, http.StatusOK, rr.Code)
	var run model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Summary)
	assert.Equal(t, int64(130), run.Summary.AssetTotal)

	rr = serve(t, h, "/runs/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_Aggregates(t *testing.T) {
	st, runID := seedStore(t)
	h := newRouter(st)

	rr := serve(t, h, "/runs/"+runID+"/aggregates/isic")
	require.Equal(t, http.StatusOK, rr.Code)
	var entries []model.AggregateEntry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
	assert.Equal(t, []model.AggregateEntry{
		{Dimension: model.FieldClassification, Key: "D", Total: 100},
		{Dimension: model.FieldClassification, Key: "X", Total: 30},
	}, entries)

	rr = serve(t, h, "/runs/"+runID+"/aggregates/roc_sic")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())

	rr = serve(t, h, "/runs/"+runID+"/aggregates/asset")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(t, h, "/runs/missing/aggregates/isic")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_CORS(t *testing.T) {
	st, _ := seedStore(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	rr := httptest.NewRecorder()
	newRouter(st).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
