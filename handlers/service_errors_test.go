package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/upb/ragqa/services"
	"github.com/upb/ragqa/utils"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedError   string
		expectedMessage string
	}{
		{
			name:           "validation error",
			err:            services.ErrEmptyQuestion,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "bad_request",
		},
		{
			name:            "store not loaded",
			err:             services.ErrStoreNotLoaded,
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "store_unavailable",
			expectedMessage: utils.StoreUnavailableMessage,
		},
		{
			name:            "store load error",
			err:             services.NewStoreLoadError(errors.New("bad magic")),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "store_unavailable",
			expectedMessage: utils.StoreUnavailableMessage,
		},
		{
			name:            "generation error",
			err:             services.NewGenerationError("generation model call failed", errors.New("502")),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "Server error",
		},
		{
			name:            "internal error",
			err:             services.WrapInternal("boom", errors.New("cause")),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "Server error",
		},
		{
			name:            "unknown error",
			err:             errors.New("unknown"),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "Server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			HandleServiceError(w, tt.err, zap.NewNop())

			assert.Equal(t, tt.expectedStatus, w.Code)
			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedError, response.Error)
			if tt.expectedMessage != "" {
				assert.Equal(t, tt.expectedMessage, response.Message)
			}
		})
	}
}

func TestHandleServiceError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, nil, zap.NewNop())
	assert.Equal(t, 0, w.Body.Len())
}

func TestHandleServiceError_LogsUnknownErrors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)

	HandleServiceError(httptest.NewRecorder(), errors.New("unknown"), zap.New(core))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "unhandled error type", logs.All()[0].Message)
}

func TestHandleValidationError(t *testing.T) {
	t.Run("field errors", func(t *testing.T) {
		err := utils.ValidateStruct(&AskRequest{Query: "  "})
		require.Error(t, err)

		w := httptest.NewRecorder()
		HandleValidationError(w, err, zap.NewNop())

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Validation failed", response.Message)
		assert.Contains(t, response.Details, "query")
	})

	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleValidationError(w, errors.New("request body is empty"), zap.NewNop())

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "request body is empty", response.Message)
		assert.Empty(t, response.Details)
	})
}
