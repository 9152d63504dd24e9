// Package router wires the services into the API and web route trees.
package router

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/cantine/backend/config"
	"github.com/pageza/cantine/backend/internal/api"
	"github.com/pageza/cantine/backend/internal/logging"
	"github.com/pageza/cantine/backend/internal/middleware"
	"github.com/pageza/cantine/backend/internal/service"
	"github.com/pageza/cantine/backend/internal/web"
)

// Services groups the domain services shared by both surfaces.
type Services struct {
	Accounts   *service.AccountService
	Profiles   *service.ProfileService
	Classes    *service.ClassService
	Students   *service.StudentService
	Menus      *service.MenuService
	Attendance *service.AttendanceService
	Expenses   *service.ExpenseService
	Reports    *service.ReportService
}

// NewServices builds every service on db. Uploads go to storage; dates are
// computed with clock.
func NewServices(db *gorm.DB, jwtSecret string, storage service.FileStorage, clock service.Clock, opts ...service.AccountOption) *Services {
	media := service.NewMediaService(storage)
	opts = append(opts, service.WithAccountClock(clock))
	return &Services{
		Accounts:   service.NewAccountService(db, jwtSecret, opts...),
		Profiles:   service.NewProfileService(db, media),
		Classes:    service.NewClassService(db),
		Students:   service.NewStudentService(db, media, clock),
		Menus:      service.NewMenuService(db, media, clock),
		Attendance: service.NewAttendanceService(db, clock),
		Expenses:   service.NewExpenseService(db),
		Reports:    service.NewReportService(db, clock),
	}
}

// Options carries what SetupRouter needs besides the services.
type Options struct {
	Config   *config.Config
	DB       *gorm.DB
	Services *Services
	Log      *zap.Logger
	Reporter *logging.Reporter
	// Redis enables login rate limiting when set.
	Redis *redis.Client
	// MediaRoot is served under /media when uploads are stored locally.
	MediaRoot string
}

// apiOnly runs h for /api requests only, so CORS never rejects
// same-site form posts of the web surface.
func apiOnly(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			h(c)
		}
	}
}

// SetupRouter configures the application routes
func SetupRouter(opts Options) (*gin.Engine, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	cfg := opts.Config
	svc := opts.Services

	router := gin.New()
	router.Use(
		middleware.Recovery(log, opts.Reporter),
		middleware.ErrorLogger(log, opts.Reporter),
		middleware.RequestLogger(log),
		apiOnly(middleware.CORS(cfg.CORSAllowedOrigins)),
	)

	metrics := middleware.NewMetrics()
	router.Use(metrics.Middleware())
	router.GET("/healthz", api.HealthCheck(opts.DB))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	if opts.MediaRoot != "" {
		router.Static("/media", opts.MediaRoot)
	}

	var limiter *middleware.RateLimiter
	if opts.Redis != nil {
		limiter = middleware.NewLoginRateLimiter(opts.Redis, log)
	}
	api.RegisterRoutes(router.Group("/api"), api.Deps{
		Accounts:     svc.Accounts,
		Profiles:     svc.Profiles,
		Students:     svc.Students,
		Attendance:   svc.Attendance,
		Menus:        svc.Menus,
		LoginLimiter: limiter,
		Log:          log,
	})

	pages, err := web.New(web.Deps{
		Accounts:   svc.Accounts,
		Profiles:   svc.Profiles,
		Classes:    svc.Classes,
		Students:   svc.Students,
		Menus:      svc.Menus,
		Attendance: svc.Attendance,
		Expenses:   svc.Expenses,
		Reports:    svc.Reports,
		Log:        log,
	})
	if err != nil {
		return nil, err
	}
	site := router.Group("",
		middleware.Sessions(cfg.SessionSecret, cfg.CookieSecure),
		middleware.SessionUser(),
	)
	pages.RegisterRoutes(site)

	return router, nil
}
