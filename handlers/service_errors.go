package handlers

import (
	"net/http"

	"github.com/upb/ragqa/services"
	"github.com/upb/ragqa/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Anything that is
// not a validation or store error is reported as a generic server error.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var writeErr error
	switch {
	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, err.Error(), services.GetErrorDetails(err))

	case services.IsStoreUnavailableError(err):
		writeErr = utils.WriteStoreUnavailable(w)

	case services.IsGenerationError(err), services.IsInternalError(err), services.IsRetrievalError(err):
		writeErr = utils.WriteInternalServerError(w, "")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
