package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultFilestoreEndpoint is the Cloud Filestore v1 REST root.
const DefaultFilestoreEndpoint = "https://file.googleapis.com/v1/"

type Config struct {
	Provider       string
	HTTPAddr       string
	RequestTimeout time.Duration

	GCP   GCPConfig
	Azure AzureConfig
}

type GCPConfig struct {
	ProjectID    string
	SourceZone   string // zone (or region) of the source Filestore instances
	BackupRegion string // region the backups are stored in
	Endpoint     string

	AuthMethod      string // "adc", "keyfile" or "token"
	CredentialsFile string // only if AuthMethod == keyfile
	AccessToken     string // only if AuthMethod == token
}

type AzureConfig struct {
	Account  string
	Endpoint string // defaults to https://<account>.file.core.windows.net/
	SASToken string
	Key      string

	ClientID     string
	ClientSecret string
	TenantID     string
}

// Load reads config from environment variables, applies defaults and validates.
// The returned value is never mutated afterwards.
func Load() (Config, error) {
	get := func(key, def string) string {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	parseDur := func(key string, def time.Duration) (time.Duration, error) {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			return def, nil
		}
		// Plain integers are seconds.
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return time.Duration(n) * time.Second, nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil || d <= 0 {
			return 0, fmt.Errorf("%s: invalid duration %q", key, v)
		}
		return d, nil
	}

	timeout, err := parseDur("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	addr := get("HTTP_ADDR", "")
	if addr == "" {
		// Cloud Run and Cloud Functions inject PORT.
		addr = ":" + get("PORT", "8080")
	}

	gcpAuth := strings.ToLower(get("GCP_AUTH_METHOD", ""))
	credsFile := get("GOOGLE_APPLICATION_CREDENTIALS", "")
	token := get("GCP_ACCESS_TOKEN", "")
	if gcpAuth == "" {
		switch {
		case token != "":
			gcpAuth = "token"
		default:
			// ADC also honors GOOGLE_APPLICATION_CREDENTIALS on its own.
			gcpAuth = "adc"
		}
	}

	cfg := Config{
		Provider:       strings.ToLower(get("BACKUP_PROVIDER", "gcp")),
		HTTPAddr:       addr,
		RequestTimeout: timeout,

		GCP: GCPConfig{
			ProjectID:       get("GCP_PROJECT_ID", get("GOOGLE_CLOUD_PROJECT", "")),
			SourceZone:      get("FILESTORE_SOURCE_ZONE", ""),
			BackupRegion:    get("FILESTORE_BACKUP_REGION", ""),
			Endpoint:        get("FILESTORE_ENDPOINT", DefaultFilestoreEndpoint),
			AuthMethod:      gcpAuth,
			CredentialsFile: credsFile,
			AccessToken:     token,
		},

		Azure: AzureConfig{
			Account:      get("AZURE_STORAGE_ACCOUNT", ""),
			Endpoint:     get("AZURE_FILE_ENDPOINT", ""),
			SASToken:     get("AZURE_STORAGE_SAS", ""),
			Key:          get("AZURE_STORAGE_KEY", ""),
			ClientID:     get("AZURE_CLIENT_ID", ""),
			ClientSecret: get("AZURE_CLIENT_SECRET", ""),
			TenantID:     get("AZURE_TENANT_ID", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// isPlaceholder catches the empty and "ENTER PROJECT ID" style values that
// sample deployments ship with.
func isPlaceholder(v string) bool {
	u := strings.ToUpper(strings.TrimSpace(v))
	return u == "" || strings.HasPrefix(u, "ENTER ") || strings.HasPrefix(u, "PROVIDE ") || strings.HasPrefix(u, "<")
}

// validate checks provider-specific requirements.
func (c *Config) validate() error {
	switch c.Provider {
	case "gcp":
		if isPlaceholder(c.GCP.ProjectID) || isPlaceholder(c.GCP.SourceZone) || isPlaceholder(c.GCP.BackupRegion) {
			return errors.New("gcp: GCP_PROJECT_ID, FILESTORE_SOURCE_ZONE and FILESTORE_BACKUP_REGION must be set to real values")
		}
		switch c.GCP.AuthMethod {
		case "adc":
		case "keyfile":
			if c.GCP.CredentialsFile == "" {
				return errors.New("gcp auth method keyfile requires GOOGLE_APPLICATION_CREDENTIALS")
			}
		case "token":
			if c.GCP.AccessToken == "" {
				return errors.New("gcp auth method token requires GCP_ACCESS_TOKEN")
			}
		default:
			return errors.New("unsupported gcp auth method: " + c.GCP.AuthMethod)
		}
	case "azure":
		if isPlaceholder(c.Azure.Account) {
			return errors.New("azure: AZURE_STORAGE_ACCOUNT is required")
		}
		// SAS, shared key or service principal; if none, the provider falls back to DefaultAzureCredential.
	default:
		return errors.New("unsupported provider: " + c.Provider)
	}
	return nil
}
