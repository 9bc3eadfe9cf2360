package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
	"github.com/ericfisherdev/foureyes/internal/domain/port/driven"
)

// ErrEvidenceUnavailable indicates that evidence could be neither fetched
// upstream nor recovered from a prior snapshot. Verification fails closed on
// it: uncertainty never yields a false "approved".
var ErrEvidenceUnavailable = errors.New("evidence unavailable")

// EvidenceService is the fetch-through layer between the verification path
// and the source-control host. Every successful fetch is captured as a new
// snapshot row; fetch failures fall back to the latest known snapshot, and
// upstream deletions are recorded via MarkUnavailable so the last good value
// survives the platform's retention window.
type EvidenceService struct {
	source    driven.SourceControlClient
	snapshots driven.SnapshotStore
}

// NewEvidenceService creates an EvidenceService.
func NewEvidenceService(source driven.SourceControlClient, snapshots driven.SnapshotStore) *EvidenceService {
	return &EvidenceService{source: source, snapshots: snapshots}
}

// Session starts an evidence session that records which snapshot rows were
// consulted, for the verification run's audit trail. Sessions are not safe
// for concurrent use; create one per verification.
func (s *EvidenceService) Session() *EvidenceSession {
	return &EvidenceSession{svc: s}
}

// EvidenceSession accumulates consulted snapshot ids across the reads of one
// verification. It implements verify.EvidenceLookup.
type EvidenceSession struct {
	svc *EvidenceService
	ids []int64
}

// SnapshotIDs returns the snapshot rows consulted so far, in read order.
func (e *EvidenceSession) SnapshotIDs() []int64 {
	return e.ids
}

// Reviews returns the reviews for a pull request, snapshot-backed.
func (e *EvidenceSession) Reviews(ctx context.Context, owner, repo string, number int) ([]model.Review, error) {
	scope := prScope(owner, repo, number)

	snap, err := e.read(ctx, scope, model.DataTypeReviews, func(ctx context.Context) (any, error) {
		reviews, err := e.svc.source.FetchReviews(ctx, owner, repo, number)
		if err != nil {
			return nil, err
		}
		return model.ReviewsPayload{Reviews: reviews}, nil
	})
	if err != nil {
		return nil, err
	}

	payload, err := snap.DecodeReviews()
	if err != nil {
		return nil, err
	}
	return payload.Reviews, nil
}

// Commits returns the commits belonging to a pull request, snapshot-backed.
func (e *EvidenceSession) Commits(ctx context.Context, owner, repo string, number int) ([]model.Commit, error) {
	scope := prScope(owner, repo, number)

	snap, err := e.read(ctx, scope, model.DataTypeCommits, func(ctx context.Context) (any, error) {
		commits, err := e.svc.source.FetchPullRequestCommits(ctx, owner, repo, number)
		if err != nil {
			return nil, err
		}
		return model.CommitsPayload{Commits: commits}, nil
	})
	if err != nil {
		return nil, err
	}

	payload, err := snap.DecodeCommits()
	if err != nil {
		return nil, err
	}
	return payload.Commits, nil
}

// AheadCommits returns the commits head has over base, snapshot-backed.
func (e *EvidenceSession) AheadCommits(ctx context.Context, owner, repo, base, head string) ([]model.Commit, error) {
	scope := model.SnapshotScope{Owner: owner, Repo: repo, Ref: base + "..." + head}

	snap, err := e.read(ctx, scope, model.DataTypeCompare, func(ctx context.Context) (any, error) {
		commits, err := e.svc.source.CompareCommits(ctx, owner, repo, base, head)
		if err != nil {
			return nil, err
		}
		return model.ComparePayload{AheadCommits: commits}, nil
	})
	if err != nil {
		return nil, err
	}

	payload, err := snap.DecodeCompare()
	if err != nil {
		return nil, err
	}
	return payload.AheadCommits, nil
}

// PullRequestsForCommit returns the pull requests containing the commit,
// snapshot-backed.
func (e *EvidenceSession) PullRequestsForCommit(ctx context.Context, owner, repo, sha string) ([]model.PullRequestRef, error) {
	scope := model.SnapshotScope{Owner: owner, Repo: repo, Ref: sha}

	snap, err := e.read(ctx, scope, model.DataTypePRsForCommit, func(ctx context.Context) (any, error) {
		prs, err := e.svc.source.FetchPullRequestsForCommit(ctx, owner, repo, sha)
		if err != nil {
			return nil, err
		}
		return model.PRRefsPayload{PullRequests: prs}, nil
	})
	if err != nil {
		return nil, err
	}

	payload, err := snap.DecodePRRefs()
	if err != nil {
		return nil, err
	}
	return payload.PullRequests, nil
}

// PullRequestEvidence returns the reviews and commits for a pull request, as
// the auditor's one-level recursive checks need them.
func (e *EvidenceSession) PullRequestEvidence(ctx context.Context, owner, repo string, number int) ([]model.Review, []model.Commit, error) {
	reviews, err := e.Reviews(ctx, owner, repo, number)
	if err != nil {
		return nil, nil, err
	}
	commits, err := e.Commits(ctx, owner, repo, number)
	if err != nil {
		return nil, nil, err
	}
	return reviews, commits, nil
}

// read implements the fetch-through protocol for one partition: fetch and
// snapshot on success; on upstream not-found record the deletion and fall
// back; on transient failure fall back silently; with no fallback available
// the evidence is unavailable.
func (e *EvidenceSession) read(ctx context.Context, scope model.SnapshotScope, dataType model.SnapshotDataType, fetch func(ctx context.Context) (any, error)) (*model.Snapshot, error) {
	payload, fetchErr := fetch(ctx)
	if fetchErr == nil {
		data, err := model.EncodePayload(payload)
		if err != nil {
			return nil, err
		}

		snap := model.Snapshot{
			Scope:     scope,
			DataType:  dataType,
			Origin:    model.OriginFetched,
			Available: true,
			Payload:   data,
		}
		id, err := e.svc.snapshots.Save(ctx, snap)
		if err != nil {
			return nil, err
		}
		snap.ID = id
		snap.SchemaVersion = model.SnapshotSchemaVersion
		e.ids = append(e.ids, id)
		return &snap, nil
	}

	if errors.Is(fetchErr, driven.ErrNotFound) {
		if err := e.svc.snapshots.MarkUnavailable(ctx, scope, dataType); err != nil {
			slog.Error("mark snapshot unavailable failed", "scope", scope.String(), "data_type", dataType, "error", err)
		}
	} else {
		slog.Warn("evidence fetch failed, trying snapshot fallback",
			"scope", scope.String(), "data_type", dataType, "error", fetchErr)
	}

	// Schema filter off: stale-shaped history is better than nothing here,
	// and decode failures surface to the caller anyway.
	prior, err := e.svc.snapshots.Latest(ctx, scope, dataType, false)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, fmt.Errorf("no snapshot fallback for %s %s: %w", dataType, scope, errors.Join(ErrEvidenceUnavailable, fetchErr))
	}

	e.ids = append(e.ids, prior.ID)
	return prior, nil
}

func prScope(owner, repo string, number int) model.SnapshotScope {
	return model.SnapshotScope{Owner: owner, Repo: repo, Ref: fmt.Sprintf("pr-%d", number)}
}
