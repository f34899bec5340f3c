package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/ragqa/services/interactions"
)

type staticStore bool

func (s staticStore) Loaded() bool { return bool(s) }

type staticLogStats interactions.Stats

func (s staticLogStats) GetStats() interactions.Stats { return interactions.Stats(s) }

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var response HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestHandleHealth(t *testing.T) {
	t.Run("always returns healthy", func(t *testing.T) {
		handler := NewHealthHandler(staticStore(false), nil, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()

		handler.HandleHealth(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		response := decodeHealth(t, w)
		assert.Equal(t, "healthy", response.Status)
		assert.NotEmpty(t, response.Timestamp)
		assert.Empty(t, response.Checks)
	})
}

func TestHandleReadiness(t *testing.T) {
	logger := zap.NewNop()

	t.Run("ready when store is loaded and database is available", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

		handler := NewHealthHandler(staticStore(true), db, logger)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		response := decodeHealth(t, w)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, map[string]string{"store": "loaded", "database": "healthy"}, response.Checks)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ready without a database", func(t *testing.T) {
		handler := NewHealthHandler(staticStore(true), nil, logger)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, map[string]string{"store": "loaded"}, decodeHealth(t, w).Checks)
	})

	t.Run("unavailable when store is not loaded", func(t *testing.T) {
		handler := NewHealthHandler(staticStore(false), nil, logger)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		response := decodeHealth(t, w)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Equal(t, "not_loaded", response.Checks["store"])
	})

	t.Run("unavailable when store handle is nil", func(t *testing.T) {
		handler := NewHealthHandler(nil, nil, logger)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("unavailable when ping fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		handler := NewHealthHandler(staticStore(true), db, logger)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", decodeHealth(t, w).Checks["database"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unavailable when query fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("query failed"))

		handler := NewHealthHandler(staticStore(true), db, logger)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestHandleReadiness_InteractionLog(t *testing.T) {
	tests := []struct {
		name        string
		stats       interactions.Stats
		wantCode    int
		wantState   string
		wantPending string
	}{
		{
			name:        "running workers",
			stats:       interactions.Stats{BufferSize: 1000, PendingEvents: 12, WorkerCount: 4, Started: true},
			wantCode:    http.StatusOK,
			wantState:   "running",
			wantPending: "12/1000",
		},
		{
			name:        "stopped workers",
			stats:       interactions.Stats{BufferSize: 1000, WorkerCount: 4},
			wantCode:    http.StatusServiceUnavailable,
			wantState:   "stopped",
			wantPending: "0/1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(staticStore(true), nil, zap.NewNop()).
				WithInteractionLog(staticLogStats(tt.stats))

			w := httptest.NewRecorder()
			handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			response := decodeHealth(t, w)
			assert.Equal(t, "loaded", response.Checks["store"])
			assert.Equal(t, tt.wantState, response.Checks["interaction_log"])
			assert.Equal(t, tt.wantPending, response.Checks["interaction_log_pending"])
		})
	}
}
