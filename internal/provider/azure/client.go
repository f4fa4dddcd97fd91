package azure

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/service"

	"github.com/Chapsvision-dev/filestore-backup-manager/internal/config"
	"github.com/Chapsvision-dev/filestore-backup-manager/internal/provider"
)

// newClientFromConfig builds the Files service client.
// Priority: 1) SAS  2) Shared key  3) Service Principal  4) DefaultAzureCredential.
func newClientFromConfig(c config.Config) (*service.Client, string, error) {
	endpoint := strings.TrimSpace(c.Azure.Endpoint)
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.file.core.windows.net/", c.Azure.Account)
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	opts := &service.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			// Bounded per-call timeout; the SDK retry policy is disabled below.
			Transport: &http.Client{Timeout: c.RequestTimeout},
		},
	}
	opts.Retry.MaxRetries = -1

	// 1) SAS
	if sasRaw := strings.TrimSpace(c.Azure.SASToken); sasRaw != "" {
		sas := strings.TrimPrefix(sasRaw, "?")
		cl, err := service.NewClientWithNoCredential(endpoint+"?"+sas, opts)
		return cl, "sas", err
	}

	// 2) Shared key
	if key := strings.TrimSpace(c.Azure.Key); key != "" {
		cred, err := service.NewSharedKeyCredential(c.Azure.Account, key)
		if err != nil {
			return nil, "", err
		}
		cl, err := service.NewClientWithSharedKeyCredential(endpoint, cred, opts)
		return cl, "shared_key", err
	}

	// OAuth against Files requires the backup intent.
	opts.FileRequestIntent = to.Ptr(service.ShareTokenIntentBackup)

	// 3) Service Principal
	if c.Azure.ClientID != "" && c.Azure.ClientSecret != "" && c.Azure.TenantID != "" {
		cred, err := azidentity.NewClientSecretCredential(
			c.Azure.TenantID, c.Azure.ClientID, c.Azure.ClientSecret, nil,
		)
		if err != nil {
			return nil, "", err
		}
		cl, err := service.NewClient(endpoint, cred, opts)
		return cl, "service_principal", err
	}

	// 4) Managed Identity / DefaultAzureCredential
	defCred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, "", err
	}
	cl, err := service.NewClient(endpoint, defCred, opts)
	return cl, "default_credential", err
}

func init() {
	provider.Register("azure", func(c config.Config) (provider.Provider, error) {
		client, method, err := newClientFromConfig(c)
		if err != nil {
			return nil, err
		}
		return &AzureProvider{
			client:  client,
			account: c.Azure.Account,
			auth:    method,
		}, nil
	})
}
