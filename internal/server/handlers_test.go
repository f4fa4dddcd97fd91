package server

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"

	"github.com/Chapsvision-dev/filestore-backup-manager/internal/backup"
)

func init() { gin.SetMode(gin.TestMode) }

/* ------------------------------- test fakes ------------------------------ */

// fakeRemote lets the tests drive a real backup.Manager.
type fakeRemote struct {
	records   []backup.Record
	createErr error
	listErr   error
	deleted   []string
}

func (f *fakeRemote) Name() string { return "fake" }

func (f *fakeRemote) Create(_ context.Context, id string, _ backup.CreateRequest) (backup.Operation, error) {
	if f.createErr != nil {
		return backup.Operation{}, f.createErr
	}
	return backup.Operation{Name: "operations/" + id}, nil
}

func (f *fakeRemote) List(context.Context) ([]backup.Record, error) { return f.records, f.listErr }

func (f *fakeRemote) Delete(_ context.Context, name string) (backup.Operation, error) {
	f.deleted = append(f.deleted, name)
	return backup.Operation{Name: "operations/delete"}, nil
}

func (f *fakeRemote) Get(_ context.Context, name string) (backup.Record, error) {
	for _, r := range f.records {
		if r.Name == name {
			return r, nil
		}
	}
	return backup.Record{}, &backup.RemoteError{Op: "get", StatusCode: http.StatusNotFound, Message: "backup not found"}
}

var now = time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)

func newTestServer(remote *fakeRemote) http.Handler {
	mgr := backup.NewManager(remote, backup.WithClock(func() time.Time { return now }))
	return New(mgr).Handler()
}

func do(t *testing.T, h http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

/* --------------------------------- tests -------------------------------- */

func TestCreate_Success(t *testing.T) {
	h := newTestServer(&fakeRemote{})
	w := do(t, h, http.MethodPost, "/?source_instance_name=nfs1&source_file_share_name=vol1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Backup created successfully: nfs1-backup-20240102-030405", w.Body.String())
}

func TestCreate_FormParams(t *testing.T) {
	h := newTestServer(&fakeRemote{})
	w := do(t, h, http.MethodPost, "/", url.Values{"source_instance_name": {"nfs1"}, "source_file_share_name": {"vol1"}})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "nfs1-backup-")
}

func TestCreate_MissingParams(t *testing.T) {
	h := newTestServer(&fakeRemote{})
	for _, q := range []string{"", "?source_instance_name=nfs1", "?source_file_share_name=vol1", "?source_instance_name=&source_file_share_name=vol1"} {
		w := do(t, h, http.MethodPost, "/"+q, nil)
		require.Equal(t, http.StatusBadRequest, w.Code, "query=%q", q)
		require.Contains(t, w.Body.String(), "Missing required parameters")
	}
}

func TestCreate_RemoteFailureIs500(t *testing.T) {
	h := newTestServer(&fakeRemote{createErr: &backup.RemoteError{Op: "create", StatusCode: 500, Message: "quota exceeded"}})
	w := do(t, h, http.MethodPost, "/?source_instance_name=nfs1&source_file_share_name=vol1", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.True(t, strings.HasPrefix(w.Body.String(), "Error: "))
	require.Contains(t, w.Body.String(), "quota exceeded")
}

func TestList_ReturnsMatchingRecords(t *testing.T) {
	remote := &fakeRemote{records: []backup.Record{
		{Name: "projects/p/locations/r/backups/nfs1-backup-20240101-000000", CreateTime: "2024-01-01T00:00:00Z"},
		{Name: "projects/p/locations/r/backups/nfs2-backup-20240101-000000"},
	}}
	h := newTestServer(remote)

	w := do(t, h, http.MethodGet, "/?source_instance_name=nfs1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []backup.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "nfs1-backup-20240101-000000", got[0].ID())
}

func TestList_EmptyIsJSONArray(t *testing.T) {
	h := newTestServer(&fakeRemote{})
	w := do(t, h, http.MethodGet, "/?source_instance_name=nfs1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, "[]", w.Body.String())
}

func TestList_Errors(t *testing.T) {
	h := newTestServer(&fakeRemote{})
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/", nil).Code)

	h = newTestServer(&fakeRemote{listErr: &backup.TransportError{Op: "list", Err: io.ErrUnexpectedEOF}})
	w := do(t, h, http.MethodGet, "/?source_instance_name=nfs1", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestList_Gzip(t *testing.T) {
	h := newTestServer(&fakeRemote{records: []backup.Record{{Name: "projects/p/locations/r/backups/nfs1-backup-x"}}})
	req := httptest.NewRequest(http.MethodGet, "/?source_instance_name=nfs1", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Contains(t, string(data), "nfs1-backup-x")
}

func TestDelete_Sweep(t *testing.T) {
	old := now.Add(-10 * 24 * time.Hour).UTC().Format(time.RFC3339Nano)
	recent := now.Add(-3 * 24 * time.Hour).UTC().Format(time.RFC3339Nano)
	remote := &fakeRemote{records: []backup.Record{
		{Name: "projects/p/locations/r/backups/nfs1-backup-old", CreateTime: old},
		{Name: "projects/p/locations/r/backups/nfs1-backup-new", CreateTime: recent},
	}}
	h := newTestServer(remote)

	w := do(t, h, http.MethodDelete, "/?retention_days=7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Backup deletion triggered successfully.", w.Body.String())
	require.Equal(t, "1", w.Header().Get(DeletedHeader))
	require.Equal(t, []string{"projects/p/locations/r/backups/nfs1-backup-old"}, remote.deleted)
}

func TestDelete_EmptyCollection(t *testing.T) {
	h := newTestServer(&fakeRemote{})
	w := do(t, h, http.MethodDelete, "/?retention_days=7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "0", w.Header().Get(DeletedHeader))
}

func TestDelete_BadRetention(t *testing.T) {
	remote := &fakeRemote{records: []backup.Record{
		{Name: "projects/p/locations/r/backups/nfs1-backup-a", CreateTime: now.Add(-time.Hour).UTC().Format(time.RFC3339Nano)},
	}}
	h := newTestServer(remote)
	for _, q := range []string{"", "?retention_days=", "?retention_days=seven", "?retention_days=-1", "?retention_days=1.5", "?retention_days=200000"} {
		w := do(t, h, http.MethodDelete, "/"+q, nil)
		require.Equal(t, http.StatusBadRequest, w.Code, "query=%q", q)
	}
	require.Empty(t, remote.deleted)
}

func TestDelete_FormBody(t *testing.T) {
	old := now.Add(-10 * 24 * time.Hour).UTC().Format(time.RFC3339Nano)
	remote := &fakeRemote{records: []backup.Record{{Name: "projects/p/locations/r/backups/nfs1-backup-old", CreateTime: old}}}
	h := newTestServer(remote)

	w := do(t, h, http.MethodDelete, "/", url.Values{"retention_days": {"7"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "1", w.Header().Get(DeletedHeader))
}

func TestUnsupportedMethod(t *testing.T) {
	h := newTestServer(&fakeRemote{})
	for _, m := range []string{http.MethodPut, http.MethodPatch, "PURGE", "PROPFIND"} {
		w := do(t, h, m, "/", nil)
		require.Equal(t, http.StatusBadRequest, w.Code, "method=%s", m)
		require.Equal(t, "Unsupported HTTP method", w.Body.String())
	}

	w := do(t, h, "PURGE", "/nowhere", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBackup(t *testing.T) {
	name := "projects/p/locations/r/backups/nfs1-backup-x"
	h := newTestServer(&fakeRemote{records: []backup.Record{{Name: name, State: "READY"}}})

	w := do(t, h, http.MethodGet, "/backups/"+name, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec backup.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	require.Equal(t, "READY", rec.State)

	w = do(t, h, http.MethodGet, "/backups/projects/p/locations/r/backups/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthzAndRequestID(t *testing.T) {
	h := newTestServer(&fakeRemote{})
	w := do(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDReachesManagerLogs(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	h := newTestServer(&fakeRemote{})
	req := httptest.NewRequest(http.MethodPost, "/?source_instance_name=nfs1&source_file_share_name=vol1", nil)
	req.Header.Set("X-Request-ID", "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var found bool
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var ev map[string]any
		require.NoError(t, json.Unmarshal(line, &ev))
		if ev["action"] == "backup_create" {
			found = true
			require.Equal(t, "req-42", ev["request_id"])
		}
	}
	require.True(t, found, "no backup_create lines in %q", buf.String())
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New(backup.NewManager(&fakeRemote{}))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
