package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local publishes artifacts under a directory served by the HTTP server at
// /exports/{token}/{name}. Each publish gets a fresh token directory.
type Local struct {
	dir     string
	baseURL string
}

// NewLocal creates the artifact directory if needed.
func NewLocal(dir, publicBaseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir %s: %w", dir, err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Publish removes earlier artifacts called name, then writes data under a new token.
func (l *Local) Publish(_ context.Context, name string, data []byte) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	if _, err := os.Stat(l.dir); errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, l.dir)
	}

	previous, err := filepath.Glob(filepath.Join(l.dir, "*", name))
	if err != nil {
		return "", fmt.Errorf("listing previous exports: %w", err)
	}
	for _, p := range previous {
		if err := os.RemoveAll(filepath.Dir(p)); err != nil {
			return "", fmt.Errorf("deleting previous export: %w", err)
		}
	}

	token := uuid.NewString()
	tokenDir := filepath.Join(l.dir, token)
	if err := os.Mkdir(tokenDir, 0o755); err != nil {
		return "", fmt.Errorf("creating export dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tokenDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return fmt.Sprintf("%s/exports/%s/%s", l.baseURL, token, url.PathEscape(name)), nil
}

// Path resolves a published artifact. It returns ErrNotFound for unknown or
// malformed tokens and names.
func (l *Local) Path(token, name string) (string, error) {
	if _, err := uuid.Parse(token); err != nil || !validName(name) {
		return "", ErrNotFound
	}
	p := filepath.Join(l.dir, token, name)
	if _, err := os.Stat(p); err != nil {
		return "", ErrNotFound
	}
	return p, nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}
