package application_test

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

// --- Mock implementations shared across the service tests ---

// mockLockStore grants every acquire unless told otherwise and records
// releases so tests can assert on outcomes.
type mockLockStore struct {
	nextID   int64
	denied   bool
	cooldown bool
	acquires []model.WorkKind
	releases []releaseCall
}

type releaseCall struct {
	LockID  int64
	Outcome model.LockOutcome
	Result  string
	Error   string
}

func (m *mockLockStore) Acquire(_ context.Context, workKind model.WorkKind, targetID int64, holder string, ttl time.Duration) (*model.SyncLock, error) {
	m.acquires = append(m.acquires, workKind)
	if m.denied {
		return nil, nil
	}
	m.nextID++
	return &model.SyncLock{
		ID:         m.nextID,
		WorkKind:   workKind,
		TargetID:   targetID,
		Holder:     holder,
		AcquiredAt: time.Now(),
		ExpiresAt:  time.Now().Add(ttl),
		Outcome:    model.LockOutcomeRunning,
	}, nil
}

func (m *mockLockStore) AcquireWithCooldown(ctx context.Context, workKind model.WorkKind, targetID int64, holder string, ttl, _ time.Duration) (*model.SyncLock, error) {
	if m.cooldown {
		m.acquires = append(m.acquires, workKind)
		return nil, nil
	}
	return m.Acquire(ctx, workKind, targetID, holder, ttl)
}

func (m *mockLockStore) Release(_ context.Context, lockID int64, outcome model.LockOutcome, result, errText string) error {
	m.releases = append(m.releases, releaseCall{LockID: lockID, Outcome: outcome, Result: result, Error: errText})
	return nil
}

func (m *mockLockStore) ReleaseExpired(_ context.Context) (int64, error) {
	return 0, nil
}

func (m *mockLockStore) DeleteOldRecords(_ context.Context, _ int) (int64, error) {
	return 0, nil
}

func (m *mockLockStore) GetByID(_ context.Context, _ int64) (*model.SyncLock, error) {
	return nil, nil
}

// mockSnapshotStore is an in-memory append-only snapshot store.
type mockSnapshotStore struct {
	nextID            int64
	rows              []model.Snapshot
	markedUnavailable []model.SnapshotScope
}

func (m *mockSnapshotStore) Save(_ context.Context, snap model.Snapshot) (int64, error) {
	m.nextID++
	snap.ID = m.nextID
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now()
	}
	if snap.SchemaVersion == 0 {
		snap.SchemaVersion = model.SnapshotSchemaVersion
	}
	m.rows = append(m.rows, snap)
	return snap.ID, nil
}

func (m *mockSnapshotStore) SaveBatch(ctx context.Context, snaps []model.Snapshot) ([]int64, error) {
	ids := make([]int64, 0, len(snaps))
	for _, snap := range snaps {
		id, err := m.Save(ctx, snap)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockSnapshotStore) Latest(_ context.Context, scope model.SnapshotScope, dataType model.SnapshotDataType, requireCurrentSchema bool) (*model.Snapshot, error) {
	var best *model.Snapshot
	for i := range m.rows {
		snap := m.rows[i]
		if snap.Scope != scope || snap.DataType != dataType {
			continue
		}
		if requireCurrentSchema && snap.SchemaVersion != model.SnapshotSchemaVersion {
			continue
		}
		if best == nil || snap.ID > best.ID {
			best = &m.rows[i]
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

func (m *mockSnapshotStore) History(_ context.Context, scope model.SnapshotScope, dataType model.SnapshotDataType, limit int) ([]model.Snapshot, error) {
	var out []model.Snapshot
	for _, snap := range m.rows {
		if snap.Scope == scope && snap.DataType == dataType {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockSnapshotStore) MarkUnavailable(ctx context.Context, scope model.SnapshotScope, dataType model.SnapshotDataType) error {
	m.markedUnavailable = append(m.markedUnavailable, scope)
	prior, err := m.Latest(ctx, scope, dataType, false)
	if err != nil || prior == nil {
		return err
	}
	_, err = m.Save(ctx, model.Snapshot{
		Scope:         scope,
		DataType:      dataType,
		SchemaVersion: prior.SchemaVersion,
		Origin:        model.OriginCached,
		Available:     false,
		Payload:       prior.Payload,
	})
	return err
}

func (m *mockSnapshotStore) Cleanup(_ context.Context, _ int, _ time.Duration) (int64, error) {
	return 0, nil
}

// mockSourceControl serves evidence through function fields; unset fields
// fail loudly so tests only exercise the calls they expect.
type mockSourceControl struct {
	fetchPR        func(ctx context.Context, owner, repo string, number int) (*model.PullRequestRef, error)
	fetchReviews   func(ctx context.Context, owner, repo string, number int) ([]model.Review, error)
	fetchCommits   func(ctx context.Context, owner, repo string, number int) ([]model.Commit, error)
	compareCommits func(ctx context.Context, owner, repo, base, head string) ([]model.Commit, error)
	prsForCommit   func(ctx context.Context, owner, repo, sha string) ([]model.PullRequestRef, error)
}

func (m *mockSourceControl) FetchPullRequest(ctx context.Context, owner, repo string, number int) (*model.PullRequestRef, error) {
	if m.fetchPR == nil {
		return nil, fmt.Errorf("unexpected FetchPullRequest(%s/%s#%d)", owner, repo, number)
	}
	return m.fetchPR(ctx, owner, repo, number)
}

func (m *mockSourceControl) FetchReviews(ctx context.Context, owner, repo string, number int) ([]model.Review, error) {
	if m.fetchReviews == nil {
		return nil, fmt.Errorf("unexpected FetchReviews(%s/%s#%d)", owner, repo, number)
	}
	return m.fetchReviews(ctx, owner, repo, number)
}

func (m *mockSourceControl) FetchPullRequestCommits(ctx context.Context, owner, repo string, number int) ([]model.Commit, error) {
	if m.fetchCommits == nil {
		return nil, fmt.Errorf("unexpected FetchPullRequestCommits(%s/%s#%d)", owner, repo, number)
	}
	return m.fetchCommits(ctx, owner, repo, number)
}

func (m *mockSourceControl) CompareCommits(ctx context.Context, owner, repo, base, head string) ([]model.Commit, error) {
	if m.compareCommits == nil {
		return nil, fmt.Errorf("unexpected CompareCommits(%s/%s %s...%s)", owner, repo, base, head)
	}
	return m.compareCommits(ctx, owner, repo, base, head)
}

func (m *mockSourceControl) FetchPullRequestsForCommit(ctx context.Context, owner, repo, sha string) ([]model.PullRequestRef, error) {
	if m.prsForCommit == nil {
		return nil, fmt.Errorf("unexpected FetchPullRequestsForCommit(%s/%s@%s)", owner, repo, sha)
	}
	return m.prsForCommit(ctx, owner, repo, sha)
}

// mockDeploymentStore is an in-memory deployment store.
type mockDeploymentStore struct {
	nextID      int64
	deployments []model.Deployment
	statusCalls []statusCall
}

type statusCall struct {
	ID       int64
	Status   model.DeploymentStatus
	PRNumber int
}

func (m *mockDeploymentStore) Insert(_ context.Context, d model.Deployment) (int64, error) {
	for _, existing := range m.deployments {
		if existing.ApplicationID == d.ApplicationID && existing.PlatformID == d.PlatformID {
			return 0, fmt.Errorf("duplicate platform id %d", d.PlatformID)
		}
	}
	m.nextID++
	d.ID = m.nextID
	if d.Status == "" {
		d.Status = model.StatusPending
	}
	m.deployments = append(m.deployments, d)
	return d.ID, nil
}

func (m *mockDeploymentStore) GetByID(_ context.Context, id int64) (*model.Deployment, error) {
	for _, d := range m.deployments {
		if d.ID == id {
			copied := d
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockDeploymentStore) LatestPlatformID(_ context.Context, applicationID int64) (int64, error) {
	var max int64
	for _, d := range m.deployments {
		if d.ApplicationID == applicationID && d.PlatformID > max {
			max = d.PlatformID
		}
	}
	return max, nil
}

func (m *mockDeploymentStore) ListVerifiable(_ context.Context, applicationID int64, limit int) ([]model.Deployment, error) {
	firstPass := func(d model.Deployment) bool {
		return d.Status == model.StatusPending || d.Status == model.StatusError
	}
	var out []model.Deployment
	for _, d := range m.deployments {
		if d.ApplicationID == applicationID && !d.Status.Resolved() {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if firstPass(out[i]) != firstPass(out[j]) {
			return firstPass(out[i])
		}
		return out[i].PlatformID < out[j].PlatformID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockDeploymentStore) ListUnresolved(_ context.Context, applicationID int64) ([]model.Deployment, error) {
	var out []model.Deployment
	for _, d := range m.deployments {
		if d.ApplicationID == applicationID && !d.Status.Resolved() {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlatformID < out[j].PlatformID })
	return out, nil
}

func (m *mockDeploymentStore) ListRecent(_ context.Context, applicationID int64, limit int) ([]model.Deployment, error) {
	var out []model.Deployment
	for _, d := range m.deployments {
		if d.ApplicationID == applicationID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlatformID > out[j].PlatformID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockDeploymentStore) UpdateStatus(_ context.Context, id int64, status model.DeploymentStatus, prNumber int) error {
	m.statusCalls = append(m.statusCalls, statusCall{ID: id, Status: status, PRNumber: prNumber})
	for i := range m.deployments {
		if m.deployments[i].ID == id {
			m.deployments[i].Status = status
			m.deployments[i].PRNumber = prNumber
			return nil
		}
	}
	return fmt.Errorf("deployment %d not found", id)
}

// mockVerificationStore records inserted runs.
type mockVerificationStore struct {
	nextID int64
	runs   []model.VerificationRun
}

func (m *mockVerificationStore) InsertRun(_ context.Context, run model.VerificationRun) (int64, error) {
	m.nextID++
	run.ID = m.nextID
	m.runs = append(m.runs, run)
	return run.ID, nil
}

func (m *mockVerificationStore) RunsForDeployment(_ context.Context, deploymentID int64) ([]model.VerificationRun, error) {
	var out []model.VerificationRun
	for _, run := range m.runs {
		if run.DeploymentID == deploymentID {
			out = append(out, run)
		}
	}
	return out, nil
}

// mockApplicationStore serves a fixed application list.
type mockApplicationStore struct {
	apps []model.Application
}

func (m *mockApplicationStore) Upsert(_ context.Context, app model.Application) (model.Application, error) {
	m.apps = append(m.apps, app)
	return app, nil
}

func (m *mockApplicationStore) GetByID(_ context.Context, id int64) (*model.Application, error) {
	for _, app := range m.apps {
		if app.ID == id {
			copied := app
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockApplicationStore) ListAll(_ context.Context) ([]model.Application, error) {
	return m.apps, nil
}

func (m *mockApplicationStore) ListWithReminders(_ context.Context) ([]model.Application, error) {
	var out []model.Application
	for _, app := range m.apps {
		if app.RemindersEnabled {
			out = append(out, app)
		}
	}
	return out, nil
}

// mockAlertStore records alerts in memory.
type mockAlertStore struct {
	nextID   int64
	alerts   []model.Alert
	notified []int64
}

func (m *mockAlertStore) Insert(_ context.Context, alert model.Alert) (int64, error) {
	m.nextID++
	alert.ID = m.nextID
	m.alerts = append(m.alerts, alert)
	return alert.ID, nil
}

func (m *mockAlertStore) ListUnnotified(_ context.Context) ([]model.Alert, error) {
	var out []model.Alert
	for _, alert := range m.alerts {
		if !alert.Notified() {
			out = append(out, alert)
		}
	}
	return out, nil
}

func (m *mockAlertStore) MarkNotified(_ context.Context, alertID int64) error {
	m.notified = append(m.notified, alertID)
	for i := range m.alerts {
		if m.alerts[i].ID == alertID {
			m.alerts[i].NotifiedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("alert %d not found", alertID)
}

// mockDeployClient serves platform deployments through function fields.
type mockDeployClient struct {
	fetchDeployments func(ctx context.Context, app model.Application, sinceID int64) ([]model.Deployment, error)
	fetchEvents      func(ctx context.Context, app model.Application, platformID int64) ([]model.DeployEvent, error)
}

func (m *mockDeployClient) FetchDeployments(ctx context.Context, app model.Application, sinceID int64) ([]model.Deployment, error) {
	if m.fetchDeployments == nil {
		return nil, nil
	}
	return m.fetchDeployments(ctx, app, sinceID)
}

func (m *mockDeployClient) FetchDeployEvents(ctx context.Context, app model.Application, platformID int64) ([]model.DeployEvent, error) {
	if m.fetchEvents == nil {
		return nil, nil
	}
	return m.fetchEvents(ctx, app, platformID)
}

// mockNotifier records sends and returns configurable tokens.
type mockNotifier struct {
	reminders     []model.ReminderMessage
	alerts        []model.Alert
	reminderToken string
	alertToken    string
	sendErr       error
}

func (m *mockNotifier) SendReminder(_ context.Context, msg model.ReminderMessage) (string, error) {
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.reminders = append(m.reminders, msg)
	return m.reminderToken, nil
}

func (m *mockNotifier) SendAlert(_ context.Context, _ model.Application, alert model.Alert) (string, error) {
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.alerts = append(m.alerts, alert)
	return m.alertToken, nil
}
