package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/service"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/share"

	"github.com/Chapsvision-dev/filestore-backup-manager/internal/backup"
	"github.com/Chapsvision-dev/filestore-backup-manager/internal/logx"
)

// Snapshot metadata keys written on create.
const (
	metaBackupID       = "backupid"
	metaSourceInstance = "sourceinstance"
	metaDescription    = "description"
)

// AzureProvider maps backups onto Azure Files share snapshots.
// Managed snapshots are named accounts/{acct}/shares/{share}/backups/{id};
// snapshots taken by anything else are accounts/{acct}/shares/{share}/snapshots/{ts}.
type AzureProvider struct {
	client  *service.Client
	account string
	auth    string
}

func (p *AzureProvider) Name() string { return "azure" }

// Create takes a share snapshot tagged with the backup ID.
func (p *AzureProvider) Create(ctx context.Context, id string, req backup.CreateRequest) (backup.Operation, error) {
	start := time.Now()
	sc := p.client.NewShareClient(req.SourceFileShare)
	resp, err := sc.CreateSnapshot(ctx, &share.CreateSnapshotOptions{
		Metadata: map[string]*string{
			metaBackupID:       to.Ptr(id),
			metaSourceInstance: to.Ptr(req.SourceInstance),
			metaDescription:    to.Ptr(req.SourceInstance + " scheduled backup"),
		},
	})
	if err != nil {
		return backup.Operation{}, wrapErr("azure_snapshot_create", err)
	}
	snap := ""
	if resp.Snapshot != nil {
		snap = *resp.Snapshot
	}
	logx.From(ctx).Info().Str("action", "azure_snapshot_create").Str("share", req.SourceFileShare).Str("backup_id", id).
		Str("snapshot", snap).Str("auth", p.auth).Dur("elapsed_ms", time.Since(start)).Msg("snapshot created")

	// Share snapshots are synchronous; the operation is already done.
	return backup.Operation{Name: p.backupName(req.SourceFileShare, id), Done: true}, nil
}

// List returns every share snapshot in the account.
func (p *AzureProvider) List(ctx context.Context) ([]backup.Record, error) {
	return p.listSnapshots(ctx, "")
}

// Delete removes the snapshot behind name.
func (p *AzureProvider) Delete(ctx context.Context, name string) (backup.Operation, error) {
	shareName, snap, err := p.resolve(ctx, name)
	if err != nil {
		return backup.Operation{}, err
	}
	sc := p.client.NewShareClient(shareName)
	if _, err := sc.Delete(ctx, &share.DeleteOptions{ShareSnapshot: to.Ptr(snap)}); err != nil {
		return backup.Operation{}, wrapErr("azure_snapshot_delete", err)
	}
	logx.From(ctx).Debug().Str("action", "azure_snapshot_delete").Str("share", shareName).Str("snapshot", snap).Msg("snapshot deleted")
	return backup.Operation{Name: name, Done: true}, nil
}

// Get returns the record for name.
func (p *AzureProvider) Get(ctx context.Context, name string) (backup.Record, error) {
	ref, err := parseName(name)
	if err != nil {
		return backup.Record{}, err
	}
	recs, err := p.listSnapshots(ctx, ref.share)
	if err != nil {
		return backup.Record{}, err
	}
	for _, r := range recs {
		if r.Name == p.canonical(ref) {
			return r, nil
		}
	}
	return backup.Record{}, notFound("azure_snapshot_get", name)
}

// resolve turns a record name into (share, snapshot timestamp).
func (p *AzureProvider) resolve(ctx context.Context, name string) (string, string, error) {
	ref, err := parseName(name)
	if err != nil {
		return "", "", err
	}
	if ref.kind == kindSnapshot {
		return ref.share, ref.value, nil
	}
	items, err := p.shareItems(ctx, ref.share)
	if err != nil {
		return "", "", err
	}
	for _, it := range items {
		if it.Snapshot != nil && deref(it.Name) == ref.share && metaValue(it.Metadata, metaBackupID) == ref.value {
			return ref.share, *it.Snapshot, nil
		}
	}
	return "", "", notFound("azure_snapshot_resolve", name)
}

func (p *AzureProvider) listSnapshots(ctx context.Context, prefix string) ([]backup.Record, error) {
	items, err := p.shareItems(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var out []backup.Record
	for _, it := range items {
		if it.Snapshot == nil || it.Name == nil {
			continue
		}
		if prefix != "" && *it.Name != prefix {
			continue
		}
		out = append(out, p.toRecord(it))
	}
	return out, nil
}

func (p *AzureProvider) shareItems(ctx context.Context, prefix string) ([]*service.Share, error) {
	opts := &service.ListSharesOptions{
		Include: service.ListSharesInclude{Snapshots: true, Metadata: true},
	}
	if prefix != "" {
		opts.Prefix = to.Ptr(prefix)
	}
	var out []*service.Share
	pager := p.client.NewListSharesPager(opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapErr("azure_share_list", err)
		}
		out = append(out, page.Shares...)
	}
	return out, nil
}

func (p *AzureProvider) toRecord(it *service.Share) backup.Record {
	shareName := deref(it.Name)
	snap := deref(it.Snapshot)
	r := backup.Record{
		CreateTime:      snap,
		Description:     metaValue(it.Metadata, metaDescription),
		SourceInstance:  metaValue(it.Metadata, metaSourceInstance),
		SourceFileShare: shareName,
		State:           "READY",
	}
	if id := metaValue(it.Metadata, metaBackupID); id != "" {
		r.Name = p.backupName(shareName, id)
	} else {
		r.Name = p.snapshotName(shareName, snap)
	}
	return r
}

func (p *AzureProvider) backupName(shareName, id string) string {
	return fmt.Sprintf("accounts/%s/shares/%s/backups/%s", p.account, shareName, id)
}

func (p *AzureProvider) snapshotName(shareName, snap string) string {
	return fmt.Sprintf("accounts/%s/shares/%s/snapshots/%s", p.account, shareName, snap)
}

func (p *AzureProvider) canonical(ref nameRef) string {
	if ref.kind == kindSnapshot {
		return p.snapshotName(ref.share, ref.value)
	}
	return p.backupName(ref.share, ref.value)
}

const (
	kindBackup   = "backups"
	kindSnapshot = "snapshots"
)

type nameRef struct {
	share string
	kind  string
	value string
}

// parseName accepts accounts/{a}/shares/{s}/(backups|snapshots)/{v}.
func parseName(name string) (nameRef, error) {
	parts := strings.Split(strings.Trim(name, "/"), "/")
	if len(parts) != 6 || parts[0] != "accounts" || parts[2] != "shares" ||
		(parts[4] != kindBackup && parts[4] != kindSnapshot) || parts[3] == "" || parts[5] == "" {
		return nameRef{}, fmt.Errorf("%w: unrecognized azure backup name %q", backup.ErrInvalidArgument, name)
	}
	return nameRef{share: parts[3], kind: parts[4], value: parts[5]}, nil
}

// metaValue looks a key up case-insensitively; the service may normalize case.
func metaValue(m map[string]*string, key string) string {
	for k, v := range m {
		if strings.EqualFold(k, key) && v != nil {
			return *v
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func notFound(op, name string) error {
	return &backup.RemoteError{Op: op, StatusCode: http.StatusNotFound, Status: "NotFound", Message: "no snapshot for " + name}
}

// wrapErr classifies SDK errors: a service response becomes RemoteError,
// anything else never reached the service.
func wrapErr(op string, err error) error {
	var re *azcore.ResponseError
	if errors.As(err, &re) {
		msg := re.ErrorCode
		if msg == "" {
			msg = http.StatusText(re.StatusCode)
		}
		return &backup.RemoteError{Op: op, StatusCode: re.StatusCode, Status: re.ErrorCode, Message: msg}
	}
	return &backup.TransportError{Op: op, Err: err}
}
