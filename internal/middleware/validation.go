package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/temcen/gamepulse/internal/validation"
)

const maxBodyBytes = 64 << 10

// ValidationMiddleware checks request bodies and query parameters before handlers run.
type ValidationMiddleware struct {
	validator *validation.SchemaValidator
}

func NewValidationMiddleware(validator *validation.SchemaValidator) *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validator,
	}
}

func (vm *ValidationMiddleware) ValidateDistribution() gin.HandlerFunc {
	return vm.validateRequestBody(validation.SchemaDistribution)
}

func (vm *ValidationMiddleware) validateRequestBody(schemaName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodDelete {
			c.Next()
			return
		}

		bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			vm.sendValidationError(c, "BODY_READ_ERROR", "Failed to read request body", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		if len(bodyBytes) == 0 {
			vm.sendValidationError(c, "EMPTY_BODY", "Request body is required", nil)
			return
		}

		if !json.Valid(bodyBytes) {
			vm.sendValidationError(c, "INVALID_JSON", "Request body must be valid JSON", nil)
			return
		}

		result := vm.validator.ValidateJSONString(schemaName, string(bodyBytes))
		if !result.Valid {
			apiError := result.ToAPIError()
			if errorObj, ok := apiError["error"].(map[string]interface{}); ok {
				errorObj["timestamp"] = time.Now().UTC().Format(time.RFC3339)
				errorObj["requestId"] = c.GetString("request_id")
				errorObj["path"] = c.Request.URL.Path
				errorObj["method"] = c.Request.Method
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, apiError)
			return
		}

		c.Next()
	}
}

// ValidateListParams checks offset and limit on list endpoints.
func (vm *ValidationMiddleware) ValidateListParams(maxLimit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		errors := make([]validation.ValidationError, 0)

		if limit := c.Query("limit"); limit != "" && !isIntInRange(limit, 1, maxLimit) {
			errors = append(errors, validation.ValidationError{
				Field:   "limit",
				Message: "Limit must be an integer between 1 and " + strconv.Itoa(maxLimit),
				Code:    "INVALID_QUERY_PARAM",
				Value:   limit,
			})
		}
		if offset := c.Query("offset"); offset != "" && !isIntInRange(offset, 0, 1<<31-1) {
			errors = append(errors, validation.ValidationError{
				Field:   "offset",
				Message: "Offset must be a non-negative integer",
				Code:    "INVALID_QUERY_PARAM",
				Value:   offset,
			})
		}

		if len(errors) > 0 {
			result := &validation.ValidationResult{Valid: false, Errors: errors}
			c.AbortWithStatusJSON(http.StatusBadRequest, result.ToAPIError())
			return
		}

		c.Next()
	}
}

func (vm *ValidationMiddleware) sendValidationError(c *gin.Context, code, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(http.StatusBadRequest, map[string]interface{}{
		"error": map[string]interface{}{
			"code":      code,
			"message":   message,
			"details":   details,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"requestId": c.GetString("request_id"),
			"path":      c.Request.URL.Path,
			"method":    c.Request.Method,
		},
	})
}

func isIntInRange(value string, min, max int) bool {
	n, err := strconv.Atoi(value)
	if err != nil {
		return false
	}
	return n >= min && n <= max
}
