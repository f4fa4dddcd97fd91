package backup

import (
	"fmt"
	"strings"
	"time"
)

// IDTimestampLayout is the Go time layout appended to generated backup IDs.
const IDTimestampLayout = "20060102-150405"

const idInfix = "-backup-"

// CreateRequest describes an on-demand backup of one file share.
type CreateRequest struct {
	SourceInstance  string
	SourceFileShare string
}

// Record is a backup as reported by the remote service. This package only
// reads records and asks for their deletion.
type Record struct {
	// Name is the fully-qualified resource path; its last segment is the backup ID.
	Name            string            `json:"name"`
	CreateTime      string            `json:"createTime,omitempty"`
	Description     string            `json:"description,omitempty"`
	SourceInstance  string            `json:"sourceInstance,omitempty"`
	SourceFileShare string            `json:"sourceFileShare,omitempty"`
	State           string            `json:"state,omitempty"`
	Labels          map[string]string `json:"labels,omitempty"`
}

// Operation is the long-running operation the remote service accepted.
type Operation struct {
	Name string `json:"name"`
	Done bool   `json:"done"`
}

// NewID builds "<instance>-backup-<YYYYMMDD-HHMMSS>" from t.
func NewID(instance string, t time.Time) string {
	return instance + idInfix + t.Format(IDTimestampLayout)
}

// ID returns the last path segment of the record name.
func (r Record) ID() string {
	if i := strings.LastIndex(r.Name, "/"); i >= 0 {
		return r.Name[i+1:]
	}
	return r.Name
}

// BelongsTo reports whether the record was created for instance.
// The backup ID must start with "<instance>-backup-" and, when the remote
// reports a source instance, its last segment must be exactly instance.
func (r Record) BelongsTo(instance string) bool {
	if instance == "" || !strings.HasPrefix(r.ID(), instance+idInfix) {
		return false
	}
	if r.SourceInstance == "" {
		return true
	}
	src := r.SourceInstance
	if i := strings.LastIndex(src, "/"); i >= 0 {
		src = src[i+1:]
	}
	return src == instance
}

// Created parses CreateTime, truncated to millisecond precision.
func (r Record) Created() (time.Time, error) {
	return ParseCreateTime(r.CreateTime)
}

// ParseCreateTime parses an RFC 3339 timestamp with optional fractional
// seconds and truncates it to millisecond precision.
func ParseCreateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty create time")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse create time %q: %w", s, err)
	}
	return t.Truncate(time.Millisecond), nil
}

// SweepResult summarizes one retention sweep.
type SweepResult struct {
	RetentionDays int
	Cutoff        time.Time
	Scanned       int
	// Deleted holds the names whose deletion the remote accepted, in order.
	Deleted []string
	// Skipped holds names whose create time could not be parsed.
	Skipped []string
}

// Count returns the number of deletions triggered.
func (r SweepResult) Count() int { return len(r.Deleted) }

// Empty reports whether the remote collection had no backups at all.
func (r SweepResult) Empty() bool { return r.Scanned == 0 }
