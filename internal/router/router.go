package router

import (
	"context"
	"time"

	"cspacehr/internal/config"
	"cspacehr/internal/handler"
	"cspacehr/internal/infra"
	"cspacehr/internal/lockout"
	"cspacehr/internal/middleware"
	"cspacehr/internal/rbac"
	"cspacehr/internal/repository"
	"cspacehr/internal/security"
	"cspacehr/internal/service"
	"cspacehr/internal/token"
	"cspacehr/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const purgeInterval = 5 * time.Minute

// State is where lockout counters and refresh token ids live.
type State struct {
	Lockout lockout.Store
	Refresh token.RefreshStore
	// Breaker guards the Redis backend; nil with the memory backend.
	Breaker *infra.CircuitBreaker
}

// NewState selects the state backend. The memory backend starts its purge
// goroutine on ctx; rdb may be nil only for the memory backend.
func NewState(ctx context.Context, cfg *config.Config, rdb *redis.Client) State {
	if cfg.StateBackend == config.StateBackendMemory || rdb == nil {
		mem := lockout.NewMemoryStore()
		mem.StartPurge(ctx, purgeInterval)
		log.Warn().Msg("lockout and refresh state kept in process memory; run a single instance")
		return State{Lockout: mem, Refresh: token.NewMemoryRefreshStore()}
	}
	cb := infra.NewCircuitBreaker(infra.DefaultCBConfig("state-redis"))
	return State{
		Lockout: lockout.WithBreaker(lockout.NewRedisStore(rdb), cb),
		Refresh: token.NewRedisRefreshStore(rdb),
		Breaker: cb,
	}
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler -> Service -> Repository -> DB/Redis
// rdb is nil when the memory state backend runs without Redis.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, state State) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	apiLimiter := middleware.NewIPRateLimiter(middleware.APIPerMinute)
	loginLimiter := middleware.NewIPRateLimiter(middleware.LoginPerMinute)
	apiLimiter.StartPurge(ctx, purgeInterval)
	loginLimiter.StartPurge(ctx, purgeInterval)

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())
	r.Use(apiLimiter.Middleware("too many requests, try again shortly"))

	// ── Infrastructure ───────────────────────────────────────────────────────
	hasher := security.NewHasher(cfg.BcryptCost)
	sessions := token.NewSessionCodec(cfg.JWTSecret)
	kiosks := token.NewKioskCodec(cfg.JWTSecret)
	guard := lockout.NewGuard(state.Lockout, lockout.Policy{
		MaxAttempts:   cfg.PINMaxAttempts,
		LockDuration:  cfg.PINLockout(),
		FailureWindow: cfg.PINFailureWindow(),
	})

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	branchRepo := repository.NewBranchRepository(db)
	grantRepo := repository.NewGrantRepository(db)
	switchLogRepo := repository.NewSwitchLogRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	// The retry queue needs Redis; without it audit failures are only logged.
	var audit service.AuditQueue
	if rdb != nil {
		audit = worker.NewDispatcher(rdb)
	}

	accessSvc := service.NewAccessService(userRepo, branchRepo, grantRepo)
	authSvc := service.NewAuthService(userRepo, sessions, state.Refresh, hasher, accessSvc, cfg)
	kioskSvc := service.NewKioskService(branchRepo, kiosks, hasher)
	userSvc := service.NewUserService(userRepo, branchRepo, hasher)
	operatorSvc := service.NewOperatorService(branchRepo, employeeRepo, switchLogRepo, guard, hasher, accessSvc, audit)

	// ── Handlers ─────────────────────────────────────────────────────────────
	cookies := handler.CookieOptions{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain}
	authH := handler.NewAuthHandler(authSvc, cookies)
	kioskH := handler.NewKioskHandler(kioskSvc, cookies)
	operatorH := handler.NewOperatorHandler(operatorSvc)
	accessH := handler.NewAccessHandler(accessSvc)
	usersH := handler.NewUsersHandler(userSvc)

	authz := middleware.NewAuthenticator(sessions, kiosks, accessSvc)
	session := authz.Require(middleware.Requirement{})
	credentialLimit := loginLimiter.Middleware("too many login attempts, try again in a minute")

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, state.Breaker))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", credentialLimit, authH.Login)
		auth.POST("/refresh", credentialLimit, authH.Refresh)
		auth.POST("/logout", authH.Logout)
		auth.GET("/me", session, authH.Me)
		auth.GET("/permissions", session, authH.Permissions)
	}

	kiosk := r.Group("/v1/kiosk")
	{
		kiosk.POST("/login", credentialLimit, kioskH.Login)
		kiosk.POST("/logout", authz.RequireKiosk(), kioskH.Logout)
	}

	v1 := r.Group("/v1")
	{
		branch := v1.Group("/branches/:branch_id/operator")
		{
			branch.POST("/switch",
				authz.Require(middleware.Requirement{Permission: rbac.PermOperatorSwitch, AllowKiosk: true}),
				authz.RequireBranch("branch_id"),
				operatorH.Switch)
			branch.GET("/logs",
				authz.RequirePermission(rbac.PermOperatorLogView),
				authz.RequireBranch("branch_id"),
				operatorH.Logs)
		}

		v1.POST("/pins/assign", authz.RequirePermission(rbac.PermPINsManage), operatorH.AssignPINs)

		grants := v1.Group("/branch-access", authz.RequirePermission(rbac.PermBranchAccessManage))
		{
			grants.POST("", accessH.Create)
			grants.GET("", accessH.List)
			grants.DELETE("/:id", accessH.Delete)
		}

		users := v1.Group("/users", authz.RequirePermission(rbac.PermUsersManage))
		{
			users.POST("", usersH.Create)
			users.GET("", usersH.List)
			users.PUT("/:id", usersH.Update)
			users.DELETE("/:id", usersH.Deactivate)
			users.PATCH("/:id/reactivate", usersH.Reactivate)
		}
	}

	// Swagger UI, only outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
