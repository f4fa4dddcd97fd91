package server

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/Chapsvision-dev/filestore-backup-manager/internal/backup"
)

// Request parameters, read from the query string or a form body.
const (
	paramInstance      = "source_instance_name"
	paramFileShare     = "source_file_share_name"
	paramRetentionDays = "retention_days"
)

// maxFormBody caps a urlencoded DELETE body.
const maxFormBody = 1 << 20

// DeletedHeader reports how many deletions a sweep triggered.
const DeletedHeader = "X-Backups-Deleted"

// trigger dispatches on the HTTP method.
func (s *Server) trigger(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodPost:
		s.createBackup(c)
	case http.MethodGet:
		s.listBackups(c)
	case http.MethodDelete:
		s.deleteExpired(c)
	default:
		c.String(http.StatusBadRequest, "Unsupported HTTP method")
	}
}

func (s *Server) createBackup(c *gin.Context) {
	instance := param(c, paramInstance)
	share := param(c, paramFileShare)
	if instance == "" || share == "" {
		c.String(http.StatusBadRequest, "Missing required parameters: %s and %s", paramInstance, paramFileShare)
		return
	}

	id, err := s.mgr.Create(c.Request.Context(), backup.CreateRequest{SourceInstance: instance, SourceFileShare: share})
	if err != nil {
		fail(c, err)
		return
	}
	c.String(http.StatusOK, "Backup created successfully: %s", id)
}

func (s *Server) listBackups(c *gin.Context) {
	instance := param(c, paramInstance)
	if instance == "" {
		c.String(http.StatusBadRequest, "Missing required parameter: %s", paramInstance)
		return
	}

	recs, err := s.mgr.List(c.Request.Context(), instance)
	if err != nil {
		fail(c, err)
		return
	}
	if recs == nil {
		recs = []backup.Record{}
	}
	c.JSON(http.StatusOK, recs)
}

func (s *Server) deleteExpired(c *gin.Context) {
	if err := loadDeleteForm(c); err != nil {
		c.String(http.StatusBadRequest, "Invalid form body: %v", err)
		return
	}
	raw := param(c, paramRetentionDays)
	if raw == "" {
		c.String(http.StatusBadRequest, "Missing required parameter: %s", paramRetentionDays)
		return
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		c.String(http.StatusBadRequest, "Invalid %s: must be a non-negative integer", paramRetentionDays)
		return
	}

	res, err := s.mgr.DeleteExpired(c.Request.Context(), days)
	c.Header(DeletedHeader, strconv.Itoa(res.Count()))
	if err != nil {
		fail(c, err)
		return
	}
	c.String(http.StatusOK, "Backup deletion triggered successfully.")
}

func (s *Server) getBackup(c *gin.Context) {
	name := strings.Trim(c.Param("name"), "/")
	rec, err := s.mgr.Get(c.Request.Context(), name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// fail maps lifecycle errors onto status codes.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, backup.ErrInvalidArgument):
		c.String(http.StatusBadRequest, "Error: %v", err)
	case backup.IsNotFound(err) && c.Request.Method == http.MethodGet && c.FullPath() != "/":
		c.String(http.StatusNotFound, "Error: %v", err)
	default:
		c.String(http.StatusInternalServerError, "Error: %v", err)
	}
}

func param(c *gin.Context, key string) string {
	if v, ok := c.GetQuery(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(c.PostForm(key))
}

// loadDeleteForm parses a urlencoded DELETE body into PostForm.
// net/http only reads form bodies for POST, PUT and PATCH.
func loadDeleteForm(c *gin.Context) error {
	if c.Request.Body == nil || c.ContentType() != binding.MIMEPOSTForm {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxFormBody))
	if err != nil {
		return err
	}
	vals, err := url.ParseQuery(string(data))
	if err != nil {
		return err
	}
	c.Request.PostForm = vals
	return nil
}
