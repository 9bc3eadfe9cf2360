package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/foureyes/internal/adapter/driven/github"
	naisadapter "github.com/ericfisherdev/foureyes/internal/adapter/driven/nais"
	slackadapter "github.com/ericfisherdev/foureyes/internal/adapter/driven/slack"
	sqliteadapter "github.com/ericfisherdev/foureyes/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/foureyes/internal/application"
	"github.com/ericfisherdev/foureyes/internal/config"
	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"db_path", cfg.DBPath,
		"platform_url", cfg.PlatformURL,
		"sync_interval", cfg.SyncInterval,
		"reminder_interval", cfg.ReminderInterval,
		"verify_limit", cfg.VerifyLimit,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire store adapters.
	appStore := sqliteadapter.NewApplicationRepo(db)
	deploymentStore := sqliteadapter.NewDeploymentRepo(db)
	snapshotStore := sqliteadapter.NewSnapshotRepo(db)
	lockStore := sqliteadapter.NewLockRepo(db)
	verificationStore := sqliteadapter.NewVerificationRepo(db)
	alertStore := sqliteadapter.NewAlertRepo(db)

	// 6. Seed monitored applications from the declarations file.
	seeds, err := cfg.LoadApplications()
	if err != nil {
		return err
	}
	for _, seed := range seeds {
		app := model.Application{
			Name:             seed.Name,
			Team:             seed.Team,
			Environment:      seed.Environment,
			ApprovedOwner:    seed.ApprovedOwner,
			ApprovedRepo:     seed.ApprovedRepo,
			RemindersEnabled: seed.RemindersEnabled,
			ReminderWeekdays: seed.ReminderWeekdays,
			ReminderTime:     seed.ReminderTime,
			ReminderChannel:  seed.ReminderChannel,
		}
		if _, err := appStore.Upsert(ctx, app); err != nil {
			return err
		}
	}
	if len(seeds) > 0 {
		slog.Info("applications seeded", "count", len(seeds))
	}

	// 7. Wire external clients and services.
	ghClient := githubadapter.NewClient(cfg.GitHubToken)
	deployClient := naisadapter.NewClient(cfg.PlatformURL, cfg.PlatformAPIKey)
	notifier := slackadapter.NewNotifier(cfg.SlackWebhookURL)

	holder := uuid.NewString()
	locks := application.NewLockManager(lockStore, holder)
	slog.Info("worker identity assigned", "holder", holder)

	evidence := application.NewEvidenceService(ghClient, snapshotStore)
	verifier := application.NewVerifyService(
		deploymentStore, verificationStore, evidence,
		cfg.AutomationLogins, cfg.LegacyCutoff,
	)
	syncService := application.NewSyncService(
		appStore, deploymentStore, alertStore, snapshotStore, lockStore, locks,
		deployClient, notifier, verifier,
		cfg.VerifyLimit, cfg.AppDelay,
	)
	reminderService := application.NewReminderService(
		appStore, deploymentStore, locks, notifier,
		application.Calendar{Holidays: cfg.HolidayMap()},
		cfg.DetailBaseURL,
	)

	// 8. Start the two periodic loops.
	syncTask := application.NewPeriodicTask("sync", cfg.SyncInterval, true, syncService.RunCycle)
	reminderTask := application.NewPeriodicTask("reminders", cfg.ReminderInterval, false, reminderService.CheckAndSendReminders)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		syncTask.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		reminderTask.Start(ctx)
	}()

	slog.Info("foureyes worker started")

	// 9. Wait for shutdown signal, then for the loops to drain.
	<-ctx.Done()
	slog.Info("shutting down")
	wg.Wait()

	slog.Info("shutdown complete")
	return nil
}
