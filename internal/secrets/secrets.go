// Package secrets resolves credentials from Google Secret Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// ErrChecksum is returned when a secret payload fails its CRC32C check.
var ErrChecksum = errors.New("secret payload checksum mismatch")

// ErrNoPayload is returned when a secret version comes back without data.
var ErrNoPayload = errors.New("secret version has no payload")

// accessFunc fetches the latest version of a secret resource name.
type accessFunc func(ctx context.Context, name string) (*secretmanagerpb.SecretPayload, error)

// Resolver fills in credentials that were not set in the config file or
// environment from Secret Manager.
type Resolver struct {
	projectID string
	access    accessFunc
	logger    *slog.Logger
}

// NewResolver creates a resolver for projectID. The Secret Manager client is
// only created when a lookup is actually needed.
func NewResolver(projectID string, logger *slog.Logger) *Resolver {
	return &Resolver{projectID: projectID, access: accessLatest, logger: logger}
}

// Resolve returns current if it is non-empty. Otherwise it fetches
// secretName from Secret Manager. An empty secretName or project leaves the
// value empty.
func (r *Resolver) Resolve(ctx context.Context, current, secretName string) (string, error) {
	if current != "" {
		return current, nil
	}
	if secretName == "" || r.projectID == "" {
		return "", nil
	}

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", r.projectID, secretName)
	payload, err := r.access(ctx, name)
	if err != nil {
		return "", fmt.Errorf("accessing secret %s: %w", secretName, err)
	}
	if payload == nil {
		return "", fmt.Errorf("secret %s: %w", secretName, ErrNoPayload)
	}

	crc32c := crc32.MakeTable(crc32.Castagnoli)
	checksum := int64(crc32.Checksum(payload.Data, crc32c))
	if payload.DataCrc32C != nil && *payload.DataCrc32C != checksum {
		return "", fmt.Errorf("secret %s: %w", secretName, ErrChecksum)
	}

	r.logger.Info("loaded secret from secret manager", "secret", secretName)
	return string(payload.Data), nil
}

func accessLatest(ctx context.Context, name string) (*secretmanagerpb.SecretPayload, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating secretmanager client: %w", err)
	}
	defer client.Close()

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, err
	}
	return result.GetPayload(), nil
}
