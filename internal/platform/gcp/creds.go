package gcp

import (
	"strings"

	"google.golang.org/api/option"

	"github.com/yungbote/simgraph/internal/platform/envutil"
)

// ClientOptionsFromEnv builds storage client options. A fake-gcs style
// emulator (STORAGE_EMULATOR_HOST) wins over credentials; inline JSON
// credentials win over a credentials file path.
func ClientOptionsFromEnv() []option.ClientOption {
	if host := envutil.String("STORAGE_EMULATOR_HOST", ""); host != "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		return []option.ClientOption{
			option.WithEndpoint(strings.TrimRight(host, "/") + "/storage/v1/"),
			option.WithoutAuthentication(),
		}
	}
	creds := envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	if creds == "" {
		creds = envutil.String("GOOGLE_APPLICATION_CREDENTIALS", "")
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
