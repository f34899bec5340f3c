package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusOK, map[string]string{"message": "test"})
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteJSON(w, http.StatusNoContent, nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteOK(w, map[string]interface{}{"answer": "yes", "sources": []string{}}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"yes","sources":[]}`, w.Body.String())
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name        string
		write       func(http.ResponseWriter) error
		wantStatus  int
		wantError   string
		wantMessage string
	}{
		{
			name:        "bad request",
			write:       func(w http.ResponseWriter) error { return WriteBadRequest(w, "Invalid", nil) },
			wantStatus:  http.StatusBadRequest,
			wantError:   "bad_request",
			wantMessage: "Invalid",
		},
		{
			name:        "not found default message",
			write:       func(w http.ResponseWriter) error { return WriteNotFound(w, "") },
			wantStatus:  http.StatusNotFound,
			wantError:   "not_found",
			wantMessage: "Resource not found",
		},
		{
			name:        "method not allowed",
			write:       WriteMethodNotAllowed,
			wantStatus:  http.StatusMethodNotAllowed,
			wantError:   "method_not_allowed",
			wantMessage: "Method not allowed",
		},
		{
			name:        "store unavailable",
			write:       WriteStoreUnavailable,
			wantStatus:  http.StatusInternalServerError,
			wantError:   "store_unavailable",
			wantMessage: "Failed to load data. Please check the log for details.",
		},
		{
			name:        "internal error default message",
			write:       func(w http.ResponseWriter) error { return WriteInternalServerError(w, "") },
			wantStatus:  http.StatusInternalServerError,
			wantError:   "internal_error",
			wantMessage: "Server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.wantStatus, w.Code)
			response := decodeError(t, w)
			assert.Equal(t, tt.wantError, response.Error)
			assert.Equal(t, tt.wantMessage, response.Message)
		})
	}
}

func TestWriteBadRequest_Details(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteBadRequest(w, "Validation failed", map[string]interface{}{"query": "query is required"}))

	response := decodeError(t, w)
	assert.Equal(t, "query is required", response.Details["query"])
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Query string `json:"query"`
	}

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr string
	}{
		{name: "valid", body: `{"query":"hi"}`, want: "hi"},
		{name: "unknown fields are ignored", body: `{"query":"hi","extra":1}`, want: "hi"},
		{name: "empty body", body: ``, wantErr: "request body is empty"},
		{name: "malformed", body: `{"query":`, wantErr: "invalid JSON body"},
		{name: "trailing object", body: `{"query":"a"}{"query":"b"}`, wantErr: "single JSON object"},
		{name: "wrong type", body: `{"query":42}`, wantErr: "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var got payload
			err := DecodeJSON(w, r, &got)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Query)
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	body := `{"query":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	w := httptest.NewRecorder()

	var got map[string]string
	assert.Error(t, DecodeJSON(w, r, &got))
}
