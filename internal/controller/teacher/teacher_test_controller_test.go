package teacher

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulugbekw/imtihon/internal/dto"
	"github.com/ulugbekw/imtihon/internal/middleware"
	"github.com/ulugbekw/imtihon/internal/service"
)

type fakeTestService struct {
	service.TestService
	createTest func(teacherID uint, req dto.TestCreateDTO) (*dto.TestResponseDTO, error)
	deleteTest func(testID, teacherID uint) error
}

func (f *fakeTestService) CreateTest(teacherID uint, req dto.TestCreateDTO) (*dto.TestResponseDTO, error) {
	return f.createTest(teacherID, req)
}

func (f *fakeTestService) DeleteTest(testID, teacherID uint) error {
	return f.deleteTest(testID, teacherID)
}

type fakePresence struct {
	service.PresenceTracker
	snapshot []dto.PresenceEntryDTO
}

func (f *fakePresence) Snapshot(testID uint) []dto.PresenceEntryDTO { return f.snapshot }

type fakeAuthorizer struct {
	canObserve bool
	err        error
}

func (f *fakeAuthorizer) CanSubmit(userID, testID uint) (bool, error)  { return false, nil }
func (f *fakeAuthorizer) CanObserve(userID, testID uint) (bool, error) { return f.canObserve, f.err }

func newRouter(ctrl *TeacherTestController) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1", middleware.Identity())
	api.GET("/tests/:test_id/active-students", ctrl.ActiveStudents)
	api.POST("/teacher/tests", ctrl.CreateTest)
	api.DELETE("/teacher/tests/:test_id", ctrl.DeleteTest)
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "3")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateTestStatusMapping(t *testing.T) {
	body := func() string {
		now := time.Now()
		raw, _ := json.Marshal(dto.TestCreateDTO{
			Title:     "quiz",
			SubjectID: 5,
			StartAt:   now.Add(time.Hour),
			EndAt:     now.Add(2 * time.Hour),
			Questions: []dto.QuestionCreateDTO{
				{Text: "q", Options: []dto.OptionCreateDTO{{Text: "a", IsCorrect: true}, {Text: "b"}}},
			},
		})
		return string(raw)
	}()

	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"created", nil, http.StatusCreated},
		{"foreign subject", service.ErrForbidden, http.StatusForbidden},
		{"inverted window", service.ErrInvalidWindow, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := NewTeacherTestController(
				&fakeTestService{createTest: func(teacherID uint, req dto.TestCreateDTO) (*dto.TestResponseDTO, error) {
					if tc.err != nil {
						return nil, tc.err
					}
					return &dto.TestResponseDTO{ID: 1, Title: req.Title, Window: "UPCOMING"}, nil
				}},
				&fakePresence{},
				nil,
				&fakeAuthorizer{},
			)
			w := doRequest(newRouter(ctrl), http.MethodPost, "/api/v1/teacher/tests", body)
			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}

func TestDeleteTestImmutableConflict(t *testing.T) {
	ctrl := NewTeacherTestController(
		&fakeTestService{deleteTest: func(testID, teacherID uint) error { return service.ErrTestImmutable }},
		&fakePresence{},
		nil,
		&fakeAuthorizer{},
	)
	w := doRequest(newRouter(ctrl), http.MethodDelete, "/api/v1/teacher/tests/1", "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestActiveStudentsRequiresObserver(t *testing.T) {
	snapshot := []dto.PresenceEntryDTO{{UserID: 7, DisplayName: "Aziza", JoinedAt: time.Now()}}

	t.Run("observer", func(t *testing.T) {
		ctrl := NewTeacherTestController(&fakeTestService{}, &fakePresence{snapshot: snapshot}, nil, &fakeAuthorizer{canObserve: true})
		w := doRequest(newRouter(ctrl), http.MethodGet, "/api/v1/tests/1/active-students", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var got []dto.PresenceEntryDTO
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if len(got) != 1 || got[0].UserID != 7 {
			t.Errorf("snapshot = %+v, want user 7", got)
		}
	})

	t.Run("not an observer", func(t *testing.T) {
		ctrl := NewTeacherTestController(&fakeTestService{}, &fakePresence{snapshot: snapshot}, nil, &fakeAuthorizer{canObserve: false})
		w := doRequest(newRouter(ctrl), http.MethodGet, "/api/v1/tests/1/active-students", "")
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})

	t.Run("unknown test", func(t *testing.T) {
		ctrl := NewTeacherTestController(&fakeTestService{}, &fakePresence{}, nil, &fakeAuthorizer{err: service.ErrTestNotFound})
		w := doRequest(newRouter(ctrl), http.MethodGet, "/api/v1/tests/1/active-students", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}
