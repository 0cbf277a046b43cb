package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/logger"
	"github.com/teranos/hireflow/workflow"
)

// errorResponse is the JSON body of every failed API call
type errorResponse struct {
	Error         string          `json:"error"`
	Kind          workflow.Kind   `json:"kind,omitempty"`
	Message       string          `json:"message,omitempty"`
	JobPostID     string          `json:"job_post_id,omitempty"`
	CurrentStatus workflow.Status `json:"current_status,omitempty"`
}

// transitionErrorResponse always carries allowed_actions, even when none remain
type transitionErrorResponse struct {
	errorResponse
	AllowedActions []workflow.Action `json:"allowed_actions"`
}

// statusFor maps a workflow error kind to its HTTP status
func statusFor(kind workflow.Kind) int {
	switch kind {
	case workflow.KindNotFound:
		return http.StatusNotFound
	case workflow.KindPermissionDenied:
		return http.StatusForbidden
	case workflow.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case workflow.KindValidation:
		return http.StatusBadRequest
	case workflow.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Infrastructure failures are logged and hidden behind a generic message.
func (s *Server) writeError(c *gin.Context, err error) {
	kind := workflow.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError && errors.IsServiceUnavailableError(err) {
		logger.FromContext(c.Request.Context(), s.logger).Warnw("Storage unavailable",
			logger.FieldPath, c.FullPath(),
			logger.FieldError, err,
		)
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{Error: "service temporarily unavailable, retry shortly"})
		return
	}
	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context(), s.logger).Errorw("Request failed",
			logger.FieldPath, c.FullPath(),
			logger.FieldError, err,
		)
		c.AbortWithStatusJSON(status, errorResponse{Error: "internal server error"})
		return
	}

	body := errorResponse{Error: err.Error(), Kind: kind}
	var we *workflow.Error
	if errors.As(err, &we) {
		body.Message = we.UserMessage()
		body.JobPostID = we.JobPostID
		body.CurrentStatus = we.CurrentStatus
		if kind == workflow.KindInvalidTransition {
			allowed := we.AllowedActions
			if allowed == nil {
				allowed = []workflow.Action{}
			}
			c.AbortWithStatusJSON(status, transitionErrorResponse{errorResponse: body, AllowedActions: allowed})
			return
		}
	}
	c.AbortWithStatusJSON(status, body)
}

// badRequest reports malformed input the engine never saw
func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg, Kind: workflow.KindValidation})
}

// queryInt reads a non-negative integer query parameter, returning def when absent
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
