// Package app wires repositories, engines and the River client from a Config.
// Both the API server and ledgerctl build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/mentorly/backend/internal/audit"
	"github.com/mentorly/backend/internal/config"
	"github.com/mentorly/backend/internal/execution"
	"github.com/mentorly/backend/internal/ledger"
	"github.com/mentorly/backend/internal/repository"
	"github.com/mentorly/backend/internal/services"
)

type App struct {
	Config config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	River  *river.Client[pgx.Tx]

	Users        *repository.UserRepo
	Levels       *repository.ProviderLevelRepo
	Transactions *repository.TransactionRepo
	SystemLogs   *repository.SystemLogRepo
	Ledger       ledger.Service

	Accounts    *services.Accounts
	Settlement  *services.Settlement
	Payouts     *services.Payouts
	Commissions *services.Commissions
	TopUps      *services.TopUps
	Reporter    *audit.Reporter
}

// Connect opens and pings the pool.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate applies the application schema and River's own tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if err := repository.Migrate(ctx, pool); err != nil {
		return err
	}
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("river migrate up: %w", err)
	}
	return nil
}

// New builds the engines on pool. With workers set the River client also
// processes commission and reconciliation jobs; otherwise it only inserts.
func New(cfg config.Config, pool *pgxpool.Pool, logger *slog.Logger, workers bool) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Pool: pool}

	a.Users = repository.NewUserRepo(pool)
	a.Levels = repository.NewProviderLevelRepo(pool)
	a.Transactions = repository.NewTransactionRepo(pool)
	a.SystemLogs = repository.NewSystemLogRepo(pool)
	ledgerRepo := ledger.NewRepository(pool)
	a.Ledger = ledger.NewService(ledgerRepo)
	commissionRepo := repository.NewCommissionRepo(pool)
	earningRepo := repository.NewEarningRepo(pool)

	auditor := services.NewAuditor(a.SystemLogs, logger)
	a.Accounts = services.NewAccounts(pool, a.Users, repository.NewCreditHistoryRepo(pool), a.Transactions, auditor)
	pricing := services.NewPricing(repository.NewPricingRepo(pool), a.Users)
	a.Settlement = services.NewSettlement(pool, repository.NewBookingRepo(pool), ledgerRepo, earningRepo, a.Accounts, pricing, auditor,
		services.SettlementConfig{
			PlatformFeePercent: cfg.Ledger.PlatformFeePercent,
			DisputeWindow:      cfg.DisputeWindow(),
		})
	a.Payouts = services.NewPayouts(pool, repository.NewPayoutRepo(pool), a.Transactions, earningRepo, commissionRepo, a.Accounts, auditor,
		services.PayoutConfig{
			MinPayoutCredits: cfg.Ledger.MinPayoutCredits,
			CreditValueUSD:   cfg.CreditValue(),
		})
	a.Commissions = services.NewCommissions(pool, commissionRepo, a.Transactions, a.Levels, a.Accounts, auditor, cfg.CreditValue())
	a.Reporter = audit.NewReporter(repository.NewReportSource(pool), cfg.CreditValue())

	// The insert func is set after the River client exists, since the client's
	// workers need the engines built above.
	var insertMu sync.Mutex
	var insertFn execution.InsertTxFunc
	queue := execution.NewCommissionQueue(func(ctx context.Context, tx pgx.Tx, args river.JobArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			return fmt.Errorf("river insert not wired")
		}
		return fn(ctx, tx, args)
	})
	a.TopUps = services.NewTopUps(pool, a.Transactions, a.Accounts, auditor, queue)

	riverCfg := &river.Config{}
	if workers {
		ws := river.NewWorkers()
		river.AddWorker(ws, execution.NewRecordCommissionWorker(a.Commissions, logger))
		river.AddWorker(ws, execution.NewReconcileWorker(a.Reporter, logger))
		riverCfg.Workers = ws
		riverCfg.Queues = map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.Worker.MaxWorkers},
		}
		riverCfg.PeriodicJobs = []*river.PeriodicJob{execution.PeriodicReconcile(cfg.ReconcileInterval())}
	}
	client, err := river.NewClient(riverpgxv5.New(pool), riverCfg)
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	a.River = client

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args river.JobArgs) error {
		_, err := client.InsertTx(ctx, tx, args, nil)
		return err
	}
	insertMu.Unlock()
	return a, nil
}
