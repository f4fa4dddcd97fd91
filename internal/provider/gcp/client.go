package gcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Chapsvision-dev/filestore-backup-manager/internal/backup"
	"github.com/Chapsvision-dev/filestore-backup-manager/internal/logx"
	"github.com/Chapsvision-dev/filestore-backup-manager/internal/version"
)

// maxBody caps how much of a response we read.
const maxBody = 8 << 20

// do sends one signed request to the Filestore API and decodes a 2xx JSON
// body into out (when non-nil). Non-2xx becomes *backup.RemoteError, no
// response at all becomes *backup.TransportError.
func (p *Provider) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	client, err := p.auth.Client(ctx)
	if err != nil {
		return fmt.Errorf("%s: auth: %w", op, err)
	}

	u := p.endpoint.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rdr io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logx.From(ctx).Debug().Str("action", op).Str("method", method).Str("url", u.String()).Msg("calling filestore")

	resp, err := client.Do(req)
	if err != nil {
		return &backup.TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &backup.TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		re := decodeRemoteError(op, resp.StatusCode, data)
		logx.From(ctx).Debug().Int("status", resp.StatusCode).Str("action", op).Str("remote_status", re.Status).
			Str("message", re.Message).Msg("non-2xx response")
		return re
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// decodeRemoteError understands both {"error": "msg"} and the Google API
// envelope {"error": {"code", "message", "status"}}.
func decodeRemoteError(op string, code int, data []byte) *backup.RemoteError {
	re := &backup.RemoteError{Op: op, StatusCode: code}

	var env struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err == nil && len(env.Error) > 0 {
		var msg string
		if err := json.Unmarshal(env.Error, &msg); err == nil {
			re.Message = msg
		} else {
			var obj struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
				Status  string `json:"status"`
			}
			if err := json.Unmarshal(env.Error, &obj); err == nil {
				re.Message = obj.Message
				re.Status = obj.Status
			}
		}
	}
	if re.Message == "" {
		re.Message = snippet(data)
	}
	return re
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 1024 {
		s = s[:1024]
	}
	return s
}
