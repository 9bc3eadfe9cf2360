package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
	"github.com/ericfisherdev/foureyes/internal/domain/port/driven"
)

// Lock TTLs and housekeeping bounds for the sync cycle. Verification gets a
// longer TTL because evidence fetches can crawl large pull requests.
const (
	syncLockTTL     = 5 * time.Minute
	verifyLockTTL   = 15 * time.Minute
	logCacheLockTTL = 5 * time.Minute

	// logCacheDepth is how many recent deployments get their platform
	// events cached per cycle.
	logCacheDepth = 3

	// lockRecordRetention is how many released lock rows are kept per
	// (work kind, application) pair as an audit log.
	lockRecordRetention = 50

	snapshotKeepPerPartition = 5
	snapshotRetention        = 90 * 24 * time.Hour
)

// SyncService is the periodic control loop of one worker process. Each cycle
// it walks every monitored application and, under per-application locks,
// pulls new deployments, verifies pending ones, and caches platform logs;
// after the loop it flushes outbound notifications and trims old records.
// Lock contention from other workers is a skip, never an error.
type SyncService struct {
	apps        driven.ApplicationStore
	deployments driven.DeploymentStore
	alerts      driven.AlertStore
	snapshots   driven.SnapshotStore
	lockStore   driven.LockStore
	locks       *LockManager
	deploy      driven.DeployClient
	notifier    driven.Notifier
	verifier    *VerifyService

	// verifyLimit caps deployments verified per application per cycle.
	verifyLimit int
	// appDelay is the courtesy pause between applications within a cycle.
	appDelay time.Duration
}

// NewSyncService creates a SyncService.
func NewSyncService(
	apps driven.ApplicationStore,
	deployments driven.DeploymentStore,
	alerts driven.AlertStore,
	snapshots driven.SnapshotStore,
	lockStore driven.LockStore,
	locks *LockManager,
	deploy driven.DeployClient,
	notifier driven.Notifier,
	verifier *VerifyService,
	verifyLimit int,
	appDelay time.Duration,
) *SyncService {
	return &SyncService{
		apps:        apps,
		deployments: deployments,
		alerts:      alerts,
		snapshots:   snapshots,
		lockStore:   lockStore,
		locks:       locks,
		deploy:      deploy,
		notifier:    notifier,
		verifier:    verifier,
		verifyLimit: verifyLimit,
		appDelay:    appDelay,
	}
}

// RunCycle executes one full sync cycle. Per-application failures are logged
// and do not abort processing of the remaining applications.
func (s *SyncService) RunCycle(ctx context.Context) error {
	start := time.Now()

	// Reclaim locks left behind by crashed workers before doing any work.
	if swept, err := s.lockStore.ReleaseExpired(ctx); err != nil {
		slog.Error("expired lock sweep failed", "error", err)
	} else if swept > 0 {
		slog.Info("reclaimed expired locks", "count", swept)
	}

	apps, err := s.apps.ListAll(ctx)
	if err != nil {
		return err
	}

	for i, app := range apps {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i > 0 && s.appDelay > 0 {
			// Shutdown must not wait out the courtesy pause.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.appDelay):
			}
		}

		s.runAppStep(ctx, app, model.WorkKindNaisSync, syncLockTTL, func(ctx context.Context) (any, error) {
			return s.SyncNewDeployments(ctx, app)
		})

		s.runAppStep(ctx, app, model.WorkKindGitHubVerify, verifyLockTTL, func(ctx context.Context) (any, error) {
			return s.verifier.VerifyDeployments(ctx, app, s.verifyLimit)
		})

		s.runAppStep(ctx, app, model.WorkKindLogCache, logCacheLockTTL, func(ctx context.Context) (any, error) {
			return s.cacheDeployLogs(ctx, app)
		})
	}

	s.flushAlerts(ctx, apps)
	s.trimRecords(ctx)

	slog.Info("sync cycle complete",
		"applications", len(apps),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// runAppStep runs one lock-protected unit of work for an application.
// "Already held elsewhere" is success; only real failures are logged.
func (s *SyncService) runAppStep(ctx context.Context, app model.Application, kind model.WorkKind, ttl time.Duration, fn func(ctx context.Context) (any, error)) {
	report, err := s.locks.WithLock(ctx, kind, app.ID, ttl, fn)
	if err != nil {
		slog.Error("sync step failed", "app", app.Name, "work_kind", string(kind), "error", err)
		return
	}
	if report.Locked {
		slog.Debug("sync step held elsewhere, skipping", "app", app.Name, "work_kind", string(kind))
	}
}

// SyncSummary reports one SyncNewDeployments invocation.
type SyncSummary struct {
	NewCount      int `json:"new_count"`
	AlertsCreated int `json:"alerts_created"`
}

// SyncNewDeployments pulls deployments newer than the application's
// high-water mark, persists them, and raises a repository-mismatch alert for
// every deployment whose detected repository differs from the approved one.
func (s *SyncService) SyncNewDeployments(ctx context.Context, app model.Application) (SyncSummary, error) {
	var summary SyncSummary

	sinceID, err := s.deployments.LatestPlatformID(ctx, app.ID)
	if err != nil {
		return summary, err
	}

	fetched, err := s.deploy.FetchDeployments(ctx, app, sinceID)
	if err != nil {
		return summary, err
	}

	for _, d := range fetched {
		d.ApplicationID = app.ID

		mismatch := d.DetectedOwner != app.ApprovedOwner || d.DetectedRepo != app.ApprovedRepo
		if mismatch {
			d.Status = model.StatusRepositoryMismatch
		}

		id, err := s.deployments.Insert(ctx, d)
		if err != nil {
			return summary, fmt.Errorf("persist deployment %d: %w", d.PlatformID, err)
		}
		summary.NewCount++

		if mismatch {
			_, err := s.alerts.Insert(ctx, model.Alert{
				ApplicationID: app.ID,
				Kind:          model.AlertKindRepositoryMismatch,
				Detail: fmt.Sprintf("deployment %d of %s came from %s, approved repository is %s",
					id, app.Name, d.DetectedFullName(), app.ApprovedFullName()),
			})
			if err != nil {
				slog.Error("persist mismatch alert failed", "app", app.Name, "deployment", id, "error", err)
			} else {
				summary.AlertsCreated++
			}
		}
	}

	if summary.NewCount > 0 {
		slog.Info("deployments synced", "app", app.Name, "new", summary.NewCount, "alerts", summary.AlertsCreated)
	}
	return summary, nil
}

// cacheDeployLogs snapshots the platform's status/log events for the most
// recent deployments, so the evidence trail survives the platform's own
// retention window.
func (s *SyncService) cacheDeployLogs(ctx context.Context, app model.Application) (int, error) {
	recent, err := s.deployments.ListRecent(ctx, app.ID, logCacheDepth)
	if err != nil {
		return 0, err
	}

	cached := 0
	for _, d := range recent {
		events, err := s.deploy.FetchDeployEvents(ctx, app, d.PlatformID)
		if err != nil {
			slog.Warn("fetch deploy events failed", "app", app.Name, "deployment", d.ID, "error", err)
			continue
		}
		if len(events) == 0 {
			continue
		}

		payload, err := model.EncodePayload(model.DeployEventsPayload{Events: events})
		if err != nil {
			return cached, err
		}

		_, err = s.snapshots.Save(ctx, model.Snapshot{
			Scope: model.SnapshotScope{
				Owner: app.Team,
				Repo:  app.Name,
				Ref:   fmt.Sprintf("deploy-%d", d.PlatformID),
			},
			DataType:  model.DataTypeDeployEvents,
			Origin:    model.OriginFetched,
			Available: true,
			Payload:   payload,
		})
		if err != nil {
			return cached, err
		}
		cached++
	}

	return cached, nil
}

// flushAlerts delivers every alert not yet notified. Delivery failures leave
// the alert queued for the next cycle.
func (s *SyncService) flushAlerts(ctx context.Context, apps []model.Application) {
	pending, err := s.alerts.ListUnnotified(ctx)
	if err != nil {
		slog.Error("list unnotified alerts failed", "error", err)
		return
	}

	appsByID := make(map[int64]model.Application, len(apps))
	for _, app := range apps {
		appsByID[app.ID] = app
	}

	for _, alert := range pending {
		app, ok := appsByID[alert.ApplicationID]
		if !ok {
			slog.Warn("alert references unknown application", "alert", alert.ID, "application", alert.ApplicationID)
			continue
		}

		token, err := s.notifier.SendAlert(ctx, app, alert)
		if err != nil || token == "" {
			slog.Warn("alert delivery failed", "alert", alert.ID, "error", err)
			continue
		}

		if err := s.alerts.MarkNotified(ctx, alert.ID); err != nil {
			slog.Error("mark alert notified failed", "alert", alert.ID, "error", err)
		}
	}
}

// trimRecords prunes released lock rows and aged-out snapshot history.
func (s *SyncService) trimRecords(ctx context.Context) {
	if deleted, err := s.lockStore.DeleteOldRecords(ctx, lockRecordRetention); err != nil {
		slog.Error("trim lock records failed", "error", err)
	} else if deleted > 0 {
		slog.Debug("trimmed lock records", "deleted", deleted)
	}

	if deleted, err := s.snapshots.Cleanup(ctx, snapshotKeepPerPartition, snapshotRetention); err != nil {
		slog.Error("snapshot cleanup failed", "error", err)
	} else if deleted > 0 {
		slog.Debug("cleaned up snapshots", "deleted", deleted)
	}
}
