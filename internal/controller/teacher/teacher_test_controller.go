package teacher

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

type TeacherTestController struct {
	testService service.TestService
	presence    service.PresenceTracker
	aggregation service.AggregationService
	authorizer  service.Authorizer
}

func NewTeacherTestController(
	testService service.TestService,
	presence service.PresenceTracker,
	aggregation service.AggregationService,
	authorizer service.Authorizer,
) *TeacherTestController {
	return &TeacherTestController{
		testService: testService,
		presence:    presence,
		aggregation: aggregation,
		authorizer:  authorizer,
	}
}

// CreateTest godoc
// @Summary (Teacher) Schedule a new test
// @Description Creates a test with its questions and options. The window invariant (start before end) and the exactly-one-correct-option invariant are enforced.
// @Tags Teacher - Tests
// @Accept json
// @Produce json
// @Param test_data body dto.TestCreateDTO true "Test definition"
// @Success 201 {object} dto.TestResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid definition"
// @Failure 403 {object} dto.ErrorResponse "Subject is not owned by the caller"
// @Router /teacher/tests [post]
func (c *TeacherTestController) CreateTest(ctx *gin.Context) {
	var req dto.TestCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("CreateTest: failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	teacherID := middleware.UserID(ctx)
	resp, err := c.testService.CreateTest(teacherID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "Subject does not belong to you"})
		case errors.Is(err, service.ErrInvalidWindow):
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Test start time must be before end time"})
		default:
			log.Error().Err(err).Uint("teacherID", teacherID).Msg("CreateTest: service error")
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Failed to create test", Details: []string{err.Error()}})
		}
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// DeleteTest godoc
// @Summary (Teacher) Delete an upcoming test
// @Description Tests with recorded results are immutable and cannot be deleted.
// @Tags Teacher - Tests
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 204 "Deleted"
// @Failure 403 {object} dto.ErrorResponse "Not the owner"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Failure 409 {object} dto.ErrorResponse "Results exist; the test is immutable"
// @Router /teacher/tests/{test_id} [delete]
func (c *TeacherTestController) DeleteTest(ctx *gin.Context) {
	testID, ok := parseID(ctx, "test_id")
	if !ok {
		return
	}
	teacherID := middleware.UserID(ctx)

	err := c.testService.DeleteTest(testID, teacherID)
	switch {
	case err == nil:
		ctx.Status(http.StatusNoContent)
	case errors.Is(err, service.ErrTestNotFound):
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Test not found"})
	case errors.Is(err, service.ErrForbidden):
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "Test does not belong to you"})
	case errors.Is(err, service.ErrTestImmutable):
		ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: "Test already has results and cannot be deleted"})
	default:
		log.Error().Err(err).Uint("testID", testID).Msg("DeleteTest: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to delete test"})
	}
}

// ActiveStudents godoc
// @Summary (Observer) Currently connected participants of a live test
// @Description Presence snapshot for the live dashboard. Presence is telemetry only; it has no bearing on grading.
// @Tags Teacher - Tests
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {array} dto.PresenceEntryDTO
// @Failure 403 {object} dto.ErrorResponse "Caller may not observe this test"
// @Router /tests/{test_id}/active-students [get]
func (c *TeacherTestController) ActiveStudents(ctx *gin.Context) {
	testID, ok := parseID(ctx, "test_id")
	if !ok {
		return
	}
	if !c.requireObserver(ctx, testID) {
		return
	}
	ctx.JSON(http.StatusOK, c.presence.Snapshot(testID))
}

// TestResults godoc
// @Summary (Observer) Recorded results for a test
// @Tags Teacher - Tests
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {array} dto.TestResultRowDTO
// @Failure 403 {object} dto.ErrorResponse "Caller may not observe this test"
// @Router /tests/{test_id}/results [get]
func (c *TeacherTestController) TestResults(ctx *gin.Context) {
	testID, ok := parseID(ctx, "test_id")
	if !ok {
		return
	}
	if !c.requireObserver(ctx, testID) {
		return
	}

	rows, err := c.testService.TestResults(testID)
	if err != nil {
		log.Error().Err(err).Uint("testID", testID).Msg("TestResults: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to load results"})
		return
	}
	ctx.JSON(http.StatusOK, rows)
}

// SubjectAverage godoc
// @Summary Average score of each of a subject's tests
// @Description Averages across everyone who finished; a test nobody finished averages to 0.
// @Tags Subjects
// @Produce json
// @Param subject_id path int true "Subject ID"
// @Success 200 {object} dto.SubjectAverageDTO
// @Router /subjects/{subject_id}/average [get]
func (c *TeacherTestController) SubjectAverage(ctx *gin.Context) {
	subjectID, ok := parseID(ctx, "subject_id")
	if !ok {
		return
	}

	avg, err := c.aggregation.SubjectAverage(subjectID)
	if err != nil {
		log.Error().Err(err).Uint("subjectID", subjectID).Msg("SubjectAverage: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to compute averages"})
		return
	}
	ctx.JSON(http.StatusOK, avg)
}

// MySubjectAverage godoc
// @Summary (Teacher) Average scores scoped to the caller's own tests
// @Tags Teacher - Subjects
// @Produce json
// @Param subject_id path int true "Subject ID"
// @Success 200 {object} dto.SubjectAverageDTO
// @Router /teacher/subjects/{subject_id}/average [get]
func (c *TeacherTestController) MySubjectAverage(ctx *gin.Context) {
	subjectID, ok := parseID(ctx, "subject_id")
	if !ok {
		return
	}
	teacherID := middleware.UserID(ctx)

	avg, err := c.aggregation.TeacherSubjectAverage(subjectID, teacherID)
	if err != nil {
		log.Error().Err(err).Uint("subjectID", subjectID).Uint("teacherID", teacherID).Msg("MySubjectAverage: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to compute averages"})
		return
	}
	ctx.JSON(http.StatusOK, avg)
}

func (c *TeacherTestController) requireObserver(ctx *gin.Context, testID uint) bool {
	userID := middleware.UserID(ctx)
	allowed, err := c.authorizer.CanObserve(userID, testID)
	if err != nil {
		if errors.Is(err, service.ErrTestNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Test not found"})
			return false
		}
		log.Error().Err(err).Uint("testID", testID).Msg("Capability check failed")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Authorization check failed"})
		return false
	}
	if !allowed {
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "You may not observe this test"})
		return false
	}
	return true
}

func parseID(ctx *gin.Context, name string) (uint, bool) {
	val, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + name + " format"})
		return 0, false
	}
	return uint(val), true
}
