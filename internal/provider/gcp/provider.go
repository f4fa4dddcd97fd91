package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Chapsvision-dev/filestore-backup-manager/internal/auth"
	"github.com/Chapsvision-dev/filestore-backup-manager/internal/backup"
	"github.com/Chapsvision-dev/filestore-backup-manager/internal/config"
	"github.com/Chapsvision-dev/filestore-backup-manager/internal/logx"
	"github.com/Chapsvision-dev/filestore-backup-manager/internal/provider"
)

// Provider talks to the Cloud Filestore v1 backups API.
type Provider struct {
	auth     auth.Provider
	endpoint *url.URL // e.g. https://file.googleapis.com/v1/
	project  string
	zone     string
	region   string
}

// New builds a Filestore provider signing requests through ap.
func New(cfg config.GCPConfig, ap auth.Provider) (*Provider, error) {
	if ap == nil {
		return nil, errors.New("gcp: auth provider is required")
	}
	if cfg.ProjectID == "" || cfg.SourceZone == "" || cfg.BackupRegion == "" {
		return nil, errors.New("gcp: project, source zone and backup region are required")
	}
	raw := cfg.Endpoint
	if strings.TrimSpace(raw) == "" {
		raw = config.DefaultFilestoreEndpoint
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gcp: invalid endpoint %q", raw)
	}
	return &Provider{
		auth:     ap,
		endpoint: u,
		project:  cfg.ProjectID,
		zone:     cfg.SourceZone,
		region:   cfg.BackupRegion,
	}, nil
}

func (p *Provider) Name() string { return "gcp" }

// parent is the backup collection owner: projects/{p}/locations/{region}.
func (p *Provider) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", p.project, p.region)
}

// resourceName accepts a full backup name or a bare backup ID.
func (p *Provider) resourceName(name string) string {
	name = strings.Trim(name, "/")
	if !strings.Contains(name, "/") {
		return p.parent() + "/backups/" + name
	}
	return name
}

type createBody struct {
	Description     string `json:"description"`
	SourceInstance  string `json:"sourceInstance"`
	SourceFileShare string `json:"sourceFileShare"`
}

// Create starts a backup; Filestore runs it asynchronously.
func (p *Provider) Create(ctx context.Context, id string, req backup.CreateRequest) (backup.Operation, error) {
	body := createBody{
		Description:     req.SourceInstance + " scheduled backup",
		SourceInstance:  fmt.Sprintf("projects/%s/locations/%s/instances/%s", p.project, p.zone, req.SourceInstance),
		SourceFileShare: req.SourceFileShare,
	}
	q := url.Values{"backupId": {id}}

	var op backup.Operation
	start := time.Now()
	if err := p.do(ctx, "filestore_create", http.MethodPost, p.parent()+"/backups", q, body, &op); err != nil {
		return backup.Operation{}, err
	}
	logx.From(ctx).Info().Str("action", "filestore_create").Str("backup_id", id).Str("operation", op.Name).
		Dur("elapsed_ms", time.Since(start)).Msg("create accepted")
	return op, nil
}

type listResponse struct {
	Backups       []backup.Record `json:"backups"`
	NextPageToken string          `json:"nextPageToken"`
	Unreachable   []string        `json:"unreachable"`
}

// List walks every page of the backup collection.
func (p *Provider) List(ctx context.Context) ([]backup.Record, error) {
	var out []backup.Record
	token := ""
	for page := 1; ; page++ {
		var q url.Values
		if token != "" {
			q = url.Values{"pageToken": {token}}
		}
		var lr listResponse
		if err := p.do(ctx, "filestore_list", http.MethodGet, p.parent()+"/backups", q, nil, &lr); err != nil {
			return nil, err
		}
		out = append(out, lr.Backups...)
		if len(lr.Unreachable) > 0 {
			logx.From(ctx).Warn().Str("action", "filestore_list").Strs("unreachable", lr.Unreachable).Msg("some locations were unreachable")
		}
		logx.From(ctx).Debug().Str("action", "filestore_list").Int("page", page).Int("count", len(lr.Backups)).Msg("page fetched")
		if lr.NextPageToken == "" || lr.NextPageToken == token {
			return out, nil
		}
		token = lr.NextPageToken
	}
}

// Delete removes one backup by resource name.
func (p *Provider) Delete(ctx context.Context, name string) (backup.Operation, error) {
	var op backup.Operation
	if err := p.do(ctx, "filestore_delete", http.MethodDelete, p.resourceName(name), nil, nil, &op); err != nil {
		return backup.Operation{}, err
	}
	return op, nil
}

// Get fetches one backup by resource name or bare ID.
func (p *Provider) Get(ctx context.Context, name string) (backup.Record, error) {
	var r backup.Record
	if err := p.do(ctx, "filestore_get", http.MethodGet, p.resourceName(name), nil, nil, &r); err != nil {
		return backup.Record{}, err
	}
	return r, nil
}

func init() {
	provider.Register("gcp", func(cfg config.Config) (provider.Provider, error) {
		ap, err := auth.New(cfg)
		if err != nil {
			return nil, err
		}
		return New(cfg.GCP, ap)
	})
}
