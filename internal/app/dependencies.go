package app

import (
	"github.com/benchtrack/benchtrack/internal/config"
	"github.com/benchtrack/benchtrack/internal/event_bus"
	"github.com/benchtrack/benchtrack/internal/metrics"
	"github.com/benchtrack/benchtrack/internal/utils"
	"github.com/benchtrack/benchtrack/pkg/allocation"
	"github.com/benchtrack/benchtrack/pkg/bench"
	"github.com/benchtrack/benchtrack/pkg/corporate_week"
	"github.com/benchtrack/benchtrack/pkg/overallocation"
	"github.com/benchtrack/benchtrack/pkg/project"
	"github.com/benchtrack/benchtrack/pkg/session"
	"github.com/benchtrack/benchtrack/pkg/user"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus
	Metrics  *metrics.Metrics

	Sessions       *session.MemoryStore
	SessionHandler *session.Handler
	IdentityHeader string

	UserDirectory user.Directory
	UserHandler   *user.Handler
	Projects      project.Directory

	AllocationRepo    allocation.Repository
	AllocationService allocation.Service
	AllocationHandler *allocation.Handler

	CalendarHandler *corporate_week.Handler

	Checker        overallocation.Checker
	CheckerHandler *overallocation.Handler

	BenchService     bench.Service
	BenchCsvRenderer bench.ReportRenderer
	BenchHandler     *bench.Handler
}

// Stores are the persistence adapters the services are built on.
type Stores struct {
	Users    user.Repo
	Projects project.Directory
	Ledger   allocation.Repository
}

func PostgresStores(pool *pgxpool.Pool) Stores {
	return Stores{
		Users:    user.NewUserRepo(pool),
		Projects: project.NewRepo(pool),
		Ledger:   allocation.NewRepo(pool),
	}
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(stores Stores, cfg config.Application, clock utils.Clock) *Dependencies {
	deps := &Dependencies{Clock: clock}

	deps.EventBus = event_bus.NewEventBus()
	deps.Metrics = metrics.New()
	deps.Metrics.Subscribe(deps.EventBus)

	deps.Sessions = session.NewMemoryStore(cfg.Session.TTL, clock)
	deps.SessionHandler = session.NewHandler(deps.Sessions)
	deps.IdentityHeader = cfg.Session.IdentityHeader

	deps.UserDirectory = user.NewDirectory(stores.Users, clock)
	deps.UserHandler = user.NewHandler(deps.UserDirectory)
	deps.Projects = stores.Projects

	deps.AllocationRepo = stores.Ledger
	deps.AllocationService = allocation.NewService(
		deps.AllocationRepo,
		deps.UserDirectory,
		deps.Projects,
		clock,
		deps.EventBus,
		cfg.Ledger.EditWindowDays,
	)
	deps.AllocationHandler = allocation.NewHandler(deps.AllocationService)

	deps.CalendarHandler = corporate_week.NewHandler(clock, cfg.Ledger.EditWindowDays)

	deps.Checker = overallocation.NewChecker(deps.AllocationRepo, deps.UserDirectory, deps.Projects, cfg.Ledger.WeeklyLimit)
	deps.CheckerHandler = overallocation.NewHandler(deps.Checker)

	deps.BenchService = bench.NewService(deps.AllocationRepo, deps.UserDirectory, deps.Projects, cfg.Ledger.WeeklyLimit)
	deps.BenchCsvRenderer = bench.NewCsvReportRenderer()
	deps.BenchHandler = bench.NewHandler(deps.BenchService, deps.BenchCsvRenderer)

	return deps
}
