package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/ulugbekw/imtihon/config"
	"github.com/ulugbekw/imtihon/database"
	"github.com/ulugbekw/imtihon/internal/controller"
	studentctrl "github.com/ulugbekw/imtihon/internal/controller/student"
	teacherctrl "github.com/ulugbekw/imtihon/internal/controller/teacher"
	"github.com/ulugbekw/imtihon/internal/logger"
	"github.com/ulugbekw/imtihon/internal/middleware"
	"github.com/ulugbekw/imtihon/internal/model"
	"github.com/ulugbekw/imtihon/internal/repository"
	"github.com/ulugbekw/imtihon/internal/service"
	"github.com/ulugbekw/imtihon/internal/ws"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Imtihon Assessment Session API
// @version 1.0
// @description Timed assessment sessions for a school portal: live windows, presence, drafts, grading and score aggregation.
// @contact.name API Support
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:5000
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		// Core application components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewGinEngine,
			ws.NewHub,
		),

		// Repositories layer
		fx.Provide(
			repository.NewTestRepository,
			repository.NewResultRepository,
			repository.NewDraftRepository,
			repository.NewSubjectRepository,
			repository.NewUserRepository,
		),

		// Services layer
		fx.Provide(
			service.NewPresenceTracker,
			// Grader takes the grace window from config, not the container.
			func(
				testRepo repository.TestRepository,
				resultRepo repository.ResultRepository,
				draftRepo repository.DraftRepository,
				presence service.PresenceTracker,
				cfg *config.Config,
			) service.SubmissionGrader {
				return service.NewSubmissionGrader(testRepo, resultRepo, draftRepo, presence, cfg.Engine.SubmitGrace)
			},
			service.NewDeadlineScheduler,
			service.NewDraftService,
			service.NewTestService,
			service.NewAggregationService,
			service.NewAuthorizer,
		),

		// API controllers layer
		fx.Provide(
			studentctrl.NewStudentTestController,
			teacherctrl.NewTeacherTestController,
			controller.NewWSController,
		),

		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(AutoMigrateDB),
		fx.Invoke(RecoverDeadlines),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("user_agent", param.Request.UserAgent()).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Swagger UI at /swagger/index.html once docs are generated with swag init.
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	studentCtrl *studentctrl.StudentTestController,
	teacherCtrl *teacherctrl.TeacherTestController,
	wsCtrl *controller.WSController,
	scheduler service.DeadlineScheduler,
) {
	api := router.Group("/api/v1", middleware.Identity())
	{
		tests := api.Group("/tests")
		tests.GET("/:test_id", studentCtrl.GetTest)
		tests.POST("/:test_id/submit", studentCtrl.Submit)
		tests.POST("/:test_id/draft", studentCtrl.SaveDraft)
		tests.GET("/:test_id/draft", studentCtrl.GetDraft)
		tests.GET("/:test_id/active-students", teacherCtrl.ActiveStudents)
		tests.GET("/:test_id/results", teacherCtrl.TestResults)

		subjects := api.Group("/subjects")
		subjects.GET("/:subject_id/tests", studentCtrl.ListSubjectTests)
		subjects.GET("/:subject_id/my-results", studentCtrl.MyResults)
		subjects.GET("/:subject_id/average", teacherCtrl.SubjectAverage)

		teacher := api.Group("/teacher")
		teacher.POST("/tests", teacherCtrl.CreateTest)
		teacher.DELETE("/tests/:test_id", teacherCtrl.DeleteTest)
		teacher.GET("/subjects/:subject_id/average", teacherCtrl.MySubjectAverage)
	}

	// The websocket channel authenticates via query param since browsers
	// cannot set headers on the upgrade request.
	router.GET("/ws/tests/:test_id", wsCtrl.HandleTestSocket)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Assessment session API starting on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			scheduler.Shutdown()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.Grade{},
		&model.User{},
		&model.Subject{},
		&model.Test{},
		&model.Question{},
		&model.Option{},
		&model.Result{},
		&model.ResultAnswer{},
		&model.Draft{},
		&model.DraftAnswer{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}

// RecoverDeadlines fires deadlines that passed while the process was down
// and re-arms every test still inside its window. Runs after migration so
// the closed_out_at column exists on first boot.
func RecoverDeadlines(scheduler service.DeadlineScheduler) error {
	return scheduler.Recover()
}
