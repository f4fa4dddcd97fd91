package provider

import "github.com/Chapsvision-dev/filestore-backup-manager/internal/backup"

// Provider is a remote backup service the lifecycle manager drives.
// Resource names are plain strings so implementations can decide their own format.
type Provider = backup.Service
