package student

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/ulugbekw/imtihon/internal/dto"
	"github.com/ulugbekw/imtihon/internal/middleware"
	"github.com/ulugbekw/imtihon/internal/service"
)

type StudentTestController struct {
	testService service.TestService
	grader      service.SubmissionGrader
	drafts      service.DraftService
	aggregation service.AggregationService
	authorizer  service.Authorizer
}

func NewStudentTestController(
	testService service.TestService,
	grader service.SubmissionGrader,
	drafts service.DraftService,
	aggregation service.AggregationService,
	authorizer service.Authorizer,
) *StudentTestController {
	return &StudentTestController{
		testService: testService,
		grader:      grader,
		drafts:      drafts,
		aggregation: aggregation,
		authorizer:  authorizer,
	}
}

// GetTest godoc
// @Summary Get a test with its current window classification
// @Description Returns the test and its questions. The server-side window classification is authoritative; clients must reconcile any local countdown against it. Correct-option flags are stripped unless the caller may observe the test.
// @Tags Tests
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.TestResponseDTO
// @Failure 403 {object} dto.ErrorResponse "Caller may neither take nor observe this test"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/{test_id} [get]
func (c *StudentTestController) GetTest(ctx *gin.Context) {
	testID, ok := parseID(ctx, "test_id")
	if !ok {
		return
	}
	userID := middleware.UserID(ctx)

	canObserve, err := c.authorizer.CanObserve(userID, testID)
	if err != nil {
		respondAuthError(ctx, err)
		return
	}
	if !canObserve {
		canSubmit, err := c.authorizer.CanSubmit(userID, testID)
		if err != nil {
			respondAuthError(ctx, err)
			return
		}
		if !canSubmit {
			ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "You have no access to this test"})
			return
		}
	}

	test, err := c.testService.GetTest(testID, canObserve)
	if err != nil {
		if errors.Is(err, service.ErrTestNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Test not found"})
			return
		}
		log.Error().Err(err).Uint("testID", testID).Msg("GetTest: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to load test"})
		return
	}
	ctx.JSON(http.StatusOK, test)
}

// Submit godoc
// @Summary Submit answers for a test
// @Description Grades the answer set and records the immutable result. A repeated submission returns the stored result unchanged with already_finished set.
// @Tags Tests
// @Accept json
// @Produce json
// @Param test_id path int true "Test ID"
// @Param submission body dto.SubmitDTO true "Answers"
// @Success 200 {object} dto.SubmitResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Failure 403 {object} dto.ErrorResponse "Caller may not submit to this test"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Failure 409 {object} dto.ErrorResponse "Window not open, or closed past the grace period"
// @Router /tests/{test_id}/submit [post]
func (c *StudentTestController) Submit(ctx *gin.Context) {
	testID, ok := parseID(ctx, "test_id")
	if !ok {
		return
	}
	userID := middleware.UserID(ctx)

	var req dto.SubmitDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Submit: failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	allowed, err := c.authorizer.CanSubmit(userID, testID)
	if err != nil {
		respondAuthError(ctx, err)
		return
	}
	if !allowed {
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "You may not submit to this test"})
		return
	}

	resp, err := c.grader.Submit(testID, userID, req.Answers)
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, resp)
	case errors.Is(err, service.ErrAlreadyFinished):
		// Not an error to the end user: here is your result.
		ctx.JSON(http.StatusOK, resp)
	case errors.Is(err, service.ErrTestNotFound):
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Test not found"})
	case errors.Is(err, service.ErrTestNotActive):
		ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: "Test has not started yet"})
	case errors.Is(err, service.ErrWindowClosed):
		ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: "Test window is closed"})
	default:
		log.Error().Err(err).Uint("testID", testID).Uint("userID", userID).Msg("Submit: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to record submission, please retry"})
	}
}

// SaveDraft godoc
// @Summary Save in-progress answers
// @Description Replaces the caller's draft answer set for the test. The deadline close-out scores from the latest draft if the participant never submits.
// @Tags Tests
// @Accept json
// @Produce json
// @Param test_id path int true "Test ID"
// @Param draft body dto.DraftDTO true "Draft answers"
// @Success 204 "Draft saved"
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Failure 403 {object} dto.ErrorResponse "Caller may not take this test"
// @Failure 409 {object} dto.ErrorResponse "Test window is not open"
// @Router /tests/{test_id}/draft [post]
func (c *StudentTestController) SaveDraft(ctx *gin.Context) {
	testID, ok := parseID(ctx, "test_id")
	if !ok {
		return
	}
	userID := middleware.UserID(ctx)

	var req dto.DraftDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	allowed, err := c.authorizer.CanSubmit(userID, testID)
	if err != nil {
		respondAuthError(ctx, err)
		return
	}
	if !allowed {
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "You may not take this test"})
		return
	}

	if err := c.drafts.Save(testID, userID, req.Answers); err != nil {
		switch {
		case errors.Is(err, service.ErrTestNotFound):
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Test not found"})
		case errors.Is(err, service.ErrTestNotActive):
			ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: "Test window is not open"})
		default:
			log.Error().Err(err).Uint("testID", testID).Uint("userID", userID).Msg("SaveDraft: service error")
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to save draft"})
		}
		return
	}
	ctx.Status(http.StatusNoContent)
}

// GetDraft godoc
// @Summary Get the caller's saved draft answers for a test
// @Tags Tests
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {array} dto.AnswerDTO
// @Router /tests/{test_id}/draft [get]
func (c *StudentTestController) GetDraft(ctx *gin.Context) {
	testID, ok := parseID(ctx, "test_id")
	if !ok {
		return
	}
	userID := middleware.UserID(ctx)

	answers, err := c.drafts.Get(testID, userID)
	if err != nil {
		log.Error().Err(err).Uint("testID", testID).Uint("userID", userID).Msg("GetDraft: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to load draft"})
		return
	}
	ctx.JSON(http.StatusOK, answers)
}

// ListSubjectTests godoc
// @Summary List a subject's tests with the caller's result status
// @Tags Subjects
// @Produce json
// @Param subject_id path int true "Subject ID"
// @Success 200 {array} dto.TestSummaryDTO
// @Router /subjects/{subject_id}/tests [get]
func (c *StudentTestController) ListSubjectTests(ctx *gin.Context) {
	subjectID, ok := parseID(ctx, "subject_id")
	if !ok {
		return
	}
	userID := middleware.UserID(ctx)

	tests, err := c.testService.ListSubjectTests(subjectID, userID)
	if err != nil {
		log.Error().Err(err).Uint("subjectID", subjectID).Msg("ListSubjectTests: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to list tests"})
		return
	}
	ctx.JSON(http.StatusOK, tests)
}

// MyResults godoc
// @Summary The caller's score history within a subject, most recent first
// @Tags Subjects
// @Produce json
// @Param subject_id path int true "Subject ID"
// @Success 200 {array} dto.ScoreTrendEntryDTO
// @Router /subjects/{subject_id}/my-results [get]
func (c *StudentTestController) MyResults(ctx *gin.Context) {
	subjectID, ok := parseID(ctx, "subject_id")
	if !ok {
		return
	}
	userID := middleware.UserID(ctx)

	series, err := c.aggregation.StudentSubjectSeries(subjectID, userID)
	if err != nil {
		log.Error().Err(err).Uint("subjectID", subjectID).Uint("userID", userID).Msg("MyResults: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to load results"})
		return
	}
	ctx.JSON(http.StatusOK, series)
}

func parseID(ctx *gin.Context, name string) (uint, bool) {
	val, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + name + " format"})
		return 0, false
	}
	return uint(val), true
}

func respondAuthError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTestNotFound):
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Test not found"})
	case errors.Is(err, service.ErrForbidden):
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "Unknown user"})
	default:
		log.Error().Err(err).Msg("Capability check failed")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Authorization check failed"})
	}
}
