package runshttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/store"
)

type mockRuns struct {
	mock.Mock
}

func (m *mockRuns) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	args := m.Called(limit)
	return args.Get(0).([]store.Run), args.Error(1)
}

func (m *mockRuns) GetRun(ctx context.Context, id string) (store.Run, error) {
	args := m.Called(id)
	return args.Get(0).(store.Run), args.Error(1)
}

func (m *mockRuns) ListResults(ctx context.Context, runID string, page store.Page) ([]store.Result, error) {
	args := m.Called(runID, page)
	return args.Get(0).([]store.Result), args.Error(1)
}

func (m *mockRuns) ListDiagnostics(ctx context.Context, runID, reason string, page store.Page) ([]store.Diagnostic, error) {
	args := m.Called(runID, reason, page)
	return args.Get(0).([]store.Diagnostic), args.Error(1)
}

func serve(t *testing.T, runs store.RunReader, target string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	srv, err := NewServer(Config{Runs: runs})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestServer_Routes(t *testing.T) {
	runs := new(mockRuns)
	runs.On("ListRuns", 10).Return([]store.Run{{ID: "r1", Pattern: "pattern_inside_bar"}}, nil)
	runs.On("GetRun", "r1").Return(store.Run{ID: "r1", Total: 12}, nil)
	runs.On("GetRun", "nope").Return(store.Run{}, store.ErrNotFound)
	runs.On("ListResults", "r1", store.Page{Limit: 5, Offset: 10}).Return([]store.Result{{Rank: 11}}, nil)
	runs.On("ListDiagnostics", "r1", "NO_SIGNALS", store.Page{}).Return([]store.Diagnostic{{Reason: "NO_SIGNALS"}}, nil)
	runs.On("ListDiagnostics", "r2", "", store.Page{}).Return([]store.Diagnostic(nil), errors.New("disk on fire"))

	t.Run("list", func(t *testing.T) {
		rec, body := serve(t, runs, "/api/runs?limit=10")
		assert.Equal(t, http.StatusOK, rec.Code)
		var list []store.Run
		require.NoError(t, json.Unmarshal(body["runs"], &list))
		require.Len(t, list, 1)
		assert.Equal(t, "r1", list[0].ID)
	})

	t.Run("detail", func(t *testing.T) {
		rec, body := serve(t, runs, "/api/runs/r1")
		assert.Equal(t, http.StatusOK, rec.Code)
		var run store.Run
		require.NoError(t, json.Unmarshal(body["run"], &run))
		assert.Equal(t, 12, run.Total)
	})

	t.Run("not found", func(t *testing.T) {
		rec, body := serve(t, runs, "/api/runs/nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, string(body["error"]), "not found")
	})

	t.Run("results paged", func(t *testing.T) {
		rec, body := serve(t, runs, "/api/runs/r1/results?limit=5&offset=10")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(body["results"]), `"rank":11`)
	})

	t.Run("bad page", func(t *testing.T) {
		rec, _ := serve(t, runs, "/api/runs/r1/results?limit=abc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("diagnostics by reason", func(t *testing.T) {
		rec, body := serve(t, runs, "/api/runs/r1/diagnostics?reason=NO_SIGNALS")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(body["diagnostics"]), "NO_SIGNALS")
	})

	t.Run("store failure", func(t *testing.T) {
		rec, _ := serve(t, runs, "/api/runs/r2/diagnostics")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	runs.AssertExpectations(t)
}

func TestNewServer_RequiresStore(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)
}
