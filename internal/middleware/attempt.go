package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/repository"
	"github.com/stemsi/exstem-client/internal/response"
	"github.com/stemsi/exstem-client/internal/service"
)

// AttemptCookie carries the attempt ID between page load, autosave and
// submission.
const AttemptCookie = "exam_attempt"

const contextKeyAttempt = "attempt"

// RequireAttempt loads the attempt named by the cookie into the context.
// Requests without a known attempt are rejected.
func RequireAttempt(attempts *service.AttemptService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(AttemptCookie)
		if err != nil || id == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionRequired)
			return
		}

		a, err := attempts.Get(c.Request.Context(), id)
		if errors.Is(err, repository.ErrAttemptNotFound) {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionRequired)
			return
		}
		if err != nil {
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Set(contextKeyAttempt, a)
		c.Next()
	}
}

// GetAttempt returns the attempt loaded by RequireAttempt, or nil.
func GetAttempt(c *gin.Context) *model.Attempt {
	v, ok := c.Get(contextKeyAttempt)
	if !ok {
		return nil
	}
	a, _ := v.(*model.Attempt)
	return a
}
