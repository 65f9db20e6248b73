package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"dealscope/internal/domain"
	"dealscope/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
// Validation and configuration errors carry their own message since it names the offending input.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidBatch):
		return http.StatusBadRequest, "INVALID_BATCH", err.Error()
	case errors.Is(err, domain.ErrInvalidConfiguration):
		return http.StatusBadRequest, "INVALID_CONFIGURATION", err.Error()
	case errors.Is(err, domain.ErrAllDocumentsFailed):
		return http.StatusUnprocessableEntity, "ALL_DOCUMENTS_FAILED", "no document in the batch could be extracted"
	case errors.Is(err, domain.ErrOversizedDocument):
		return http.StatusRequestEntityTooLarge, "DOCUMENT_OVERSIZED", "document exceeds the extraction size limit"
	case errors.Is(err, domain.ErrReportNotFound):
		return http.StatusNotFound, "REPORT_NOT_FOUND", "analysis report not found"
	case errors.Is(err, domain.ErrEmptyQuestion):
		return http.StatusBadRequest, "EMPTY_QUESTION", "question must not be empty"
	case errors.Is(err, domain.ErrAssistantUnavailable):
		return http.StatusServiceUnavailable, "ASSISTANT_UNAVAILABLE", "profile assistant is not configured"
	case errors.Is(err, domain.ErrArchiveDisabled):
		return http.StatusNotImplemented, "ARCHIVE_DISABLED", "report archive is not enabled"
	case errors.Is(err, domain.ErrTransientExtraction):
		return http.StatusServiceUnavailable, "EXTRACTION_UNAVAILABLE", "extraction service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		log.Printf("[%s] internal error: %v", middleware.GetRequestID(c), err)
	}

	var failed *domain.AllDocumentsFailedError
	if errors.As(err, &failed) {
		c.JSON(status, APIResponse{
			Success: false,
			Error:   &APIError{Code: code, Message: msg, Details: gin.H{"failures": failed.Failures}},
		})
		return
	}
	RespondError(c, status, code, msg)
}
