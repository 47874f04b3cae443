package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-client/internal/middleware"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/repository"
	"github.com/stemsi/exstem-client/internal/response"
	"github.com/stemsi/exstem-client/internal/service"
	"github.com/stemsi/exstem-client/internal/transport"
)

// maxFormMemory bounds multipart parsing of autosave bodies.
const maxFormMemory = 1 << 20

// ExamHandler serves the exam page, autosave, submission and result
// endpoints of the development server.
type ExamHandler struct {
	attempts *service.AttemptService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(attempts *service.AttemptService) *ExamHandler {
	return &ExamHandler{attempts: attempts}
}

// GetPage godoc
// GET /exam
// Returns the exam page for the caller's attempt, starting one if needed.
func (h *ExamHandler) GetPage(c *gin.Context) {
	ctx := c.Request.Context()

	a, err := h.currentAttempt(c)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if a == nil {
		if a, err = h.attempts.Start(ctx); err != nil {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.AttemptCookie, a.ID, 0, "/", "", false, true)
	}

	page, err := h.attempts.Page(ctx, a)
	if errors.Is(err, service.ErrAttemptFinished) {
		response.Fail(c, http.StatusConflict, response.ErrExamFinished)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, page)
}

// Save godoc
// POST /exam/save
// Records a multipart form snapshot. Called periodically by the client.
func (h *ExamHandler) Save(c *gin.Context) {
	a := middleware.GetAttempt(c)

	if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	result, err := h.attempts.Save(c.Request.Context(), a.ID,
		service.ParseSeq(c.GetHeader(transport.HeaderAutosaveSeq)),
		c.GetHeader(transport.HeaderClientRun),
		formFields(c),
	)
	if errors.Is(err, service.ErrAttemptFinished) {
		response.Fail(c, http.StatusBadRequest, response.ErrExamFinished)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Submit godoc
// POST /exam/submit
// Final form submission; redirects to the result page like a browser form.
func (h *ExamHandler) Submit(c *gin.Context) {
	a := middleware.GetAttempt(c)

	if err := c.Request.ParseForm(); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	fields := formFields(c)
	if fields["exam_id"] != a.ExamID {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"exam_id": "does not match the current attempt",
		})
		return
	}

	done, err := h.attempts.Submit(c.Request.Context(), a.ID, fields)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.Redirect(http.StatusSeeOther, "/result/"+done.ID)
}

// GetResult godoc
// GET /result/:attempt_id
// Shows what was recorded for a finished attempt. Nothing is graded.
func (h *ExamHandler) GetResult(c *gin.Context) {
	id := c.Param("attempt_id")
	if _, err := uuid.Parse(id); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.attempts.Result(c.Request.Context(), id)
	if errors.Is(err, repository.ErrAttemptNotFound) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// currentAttempt returns the cookie's attempt, or nil when there is none.
func (h *ExamHandler) currentAttempt(c *gin.Context) (*model.Attempt, error) {
	id, err := c.Cookie(middleware.AttemptCookie)
	if err != nil || id == "" {
		return nil, nil
	}
	a, err := h.attempts.Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrAttemptNotFound) {
		return nil, nil
	}
	return a, err
}

// formFields flattens the parsed request form to its first values.
func formFields(c *gin.Context) map[string]string {
	fields := make(map[string]string, len(c.Request.PostForm))
	for k := range c.Request.PostForm {
		fields[k] = c.Request.PostForm.Get(k)
	}
	if c.Request.MultipartForm != nil {
		for k, vs := range c.Request.MultipartForm.Value {
			if len(vs) > 0 {
				fields[k] = vs[0]
			}
		}
	}
	return fields
}
