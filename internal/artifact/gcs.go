package artifact

import (
	"context"
	"errors"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS publishes artifacts as public objects in a Cloud Storage bucket.
type GCS struct {
	Client *storage.Client
	bucket string
	prefix string
}

// NewGCS creates a storage client. credentialsFile may be empty to use
// application default credentials.
func NewGCS(ctx context.Context, bucket, prefix, credentialsFile string) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCS{Client: client, bucket: bucket, prefix: prefix}, nil
}

// Close closes the storage client.
func (g *GCS) Close() error {
	return g.Client.Close()
}

// Publish deletes any object with the same name, writes data and grants
// allUsers read access.
func (g *GCS) Publish(ctx context.Context, name string, data []byte) (string, error) {
	objectName := g.objectName(name)
	obj := g.Client.Bucket(g.bucket).Object(objectName)

	if err := obj.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return "", fmt.Errorf("deleting previous export: %w", gcsError(err))
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("writing export: %w", gcsError(err))
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("writing export: %w", gcsError(err))
	}

	if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return "", fmt.Errorf("sharing export: %w", gcsError(err))
	}
	return publicURL(g.bucket, objectName), nil
}

func (g *GCS) objectName(name string) string {
	if g.prefix == "" {
		return name
	}
	return path.Join(g.prefix, name)
}

func publicURL(bucket, objectName string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectName)
}

func gcsError(err error) error {
	if errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
