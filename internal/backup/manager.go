package backup

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/Chapsvision-dev/filestore-backup-manager/internal/logx"
)

// DefaultTimeout bounds every single remote call made by the Manager.
const DefaultTimeout = 30 * time.Second

// MaxRetentionDays is the largest window whose cutoff still fits in a time.Duration.
const MaxRetentionDays = int(math.MaxInt64 / int64(24*time.Hour))

// Manager layers backup ID generation, instance filtering and the retention
// sweep on top of a remote Service. It holds no mutable state.
type Manager struct {
	svc     Service
	now     func() time.Time
	timeout time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for backup IDs and retention cutoffs.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTimeout sets the per-call deadline. Zero or negative keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewManager returns a Manager backed by svc.
func NewManager(svc Service, opts ...Option) *Manager {
	m := &Manager{svc: svc, now: time.Now, timeout: DefaultTimeout}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Provider returns the name of the underlying remote service.
func (m *Manager) Provider() string { return m.svc.Name() }

func (m *Manager) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}

// Create requests an on-demand backup and returns its generated ID once the
// remote has accepted the operation.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (string, error) {
	req.SourceInstance = strings.TrimSpace(req.SourceInstance)
	req.SourceFileShare = strings.TrimSpace(req.SourceFileShare)
	if req.SourceInstance == "" || req.SourceFileShare == "" {
		return "", invalidf("source_instance_name and source_file_share_name are required")
	}

	id := NewID(req.SourceInstance, m.now())
	start := time.Now()
	l := logx.From(ctx)
	l.Info().
		Str("action", "backup_create").
		Str("provider", m.svc.Name()).
		Str("instance", req.SourceInstance).
		Str("share", req.SourceFileShare).
		Str("backup_id", id).
		Msg("requesting backup")

	cctx, cancel := m.call(ctx)
	defer cancel()
	op, err := m.svc.Create(cctx, id, req)
	if err != nil {
		l.Error().
			Err(err).
			Str("action", "backup_create").
			Str("backup_id", id).
			Dur("elapsed_ms", time.Since(start)).
			Msg("backup request failed")
		return "", err
	}
	l.Info().
		Str("action", "backup_create").
		Str("backup_id", id).
		Str("operation", op.Name).
		Dur("elapsed_ms", time.Since(start)).
		Msg("backup accepted, running in the background")
	return id, nil
}

// List returns the backups created for instance, in remote order.
func (m *Manager) List(ctx context.Context, instance string) ([]Record, error) {
	instance = strings.TrimSpace(instance)
	if instance == "" {
		return nil, invalidf("source_instance_name is required")
	}

	cctx, cancel := m.call(ctx)
	defer cancel()
	all, err := m.svc.List(cctx)
	l := logx.From(ctx)
	if err != nil {
		l.Error().Err(err).Str("action", "backup_list").Str("instance", instance).Msg("list failed")
		return nil, err
	}

	out := make([]Record, 0, len(all))
	for _, r := range all {
		if r.BelongsTo(instance) {
			out = append(out, r)
		}
	}
	l.Debug().
		Str("action", "backup_list").
		Str("instance", instance).
		Int("total", len(all)).
		Int("matched", len(out)).
		Msg("backups listed")
	return out, nil
}

// Get returns a single backup by its fully-qualified name.
func (m *Manager) Get(ctx context.Context, name string) (Record, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return Record{}, invalidf("backup name is required")
	}
	cctx, cancel := m.call(ctx)
	defer cancel()
	return m.svc.Get(cctx, name)
}

// DeleteExpired deletes every backup older than retentionDays days.
// Deletions run one at a time; the first failure stops the sweep and is
// returned together with what was deleted so far.
func (m *Manager) DeleteExpired(ctx context.Context, retentionDays int) (SweepResult, error) {
	res := SweepResult{RetentionDays: retentionDays}
	if retentionDays < 0 {
		return res, invalidf("retention_days must be non-negative, got %d", retentionDays)
	}
	if retentionDays > MaxRetentionDays {
		return res, invalidf("retention_days must be at most %d, got %d", MaxRetentionDays, retentionDays)
	}

	now := m.now()
	res.Cutoff = now.Add(-time.Duration(retentionDays) * 24 * time.Hour)
	start := time.Now()
	l := logx.From(ctx)

	lctx, cancel := m.call(ctx)
	all, err := m.svc.List(lctx)
	cancel()
	if err != nil {
		l.Error().Err(err).Str("action", "backup_sweep").Msg("list failed")
		return res, err
	}
	res.Scanned = len(all)
	if res.Empty() {
		l.Info().Str("action", "backup_sweep").Int("retention_days", retentionDays).Msg("no backups found, nothing to delete")
		return res, nil
	}

	for _, r := range all {
		created, err := r.Created()
		if err != nil {
			l.Warn().Err(err).Str("action", "backup_sweep").Str("backup", r.Name).Msg("skipping backup with unreadable create time")
			res.Skipped = append(res.Skipped, r.Name)
			continue
		}
		// Strictly older than the retention window.
		if !created.Before(res.Cutoff) {
			continue
		}

		dctx, cancel := m.call(ctx)
		op, err := m.svc.Delete(dctx, r.Name)
		cancel()
		if err != nil {
			l.Error().
				Err(err).
				Str("action", "backup_sweep").
				Str("backup", r.Name).
				Int("deleted", res.Count()).
				Msg("delete failed, aborting sweep")
			return res, err
		}
		res.Deleted = append(res.Deleted, r.Name)
		l.Info().
			Str("action", "backup_delete").
			Str("backup", r.Name).
			Time("created", created).
			Str("operation", op.Name).
			Msg("deletion triggered")
	}

	l.Info().
		Str("action", "backup_sweep").
		Int("retention_days", retentionDays).
		Int("scanned", res.Scanned).
		Int("deleted", res.Count()).
		Int("skipped", len(res.Skipped)).
		Dur("elapsed_ms", time.Since(start)).
		Msg("sweep OK")
	return res, nil
}
