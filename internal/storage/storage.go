// Package storage reads and writes documents on the local file system or in
// Google Cloud Storage, selected by a gs://bucket/object location.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

const scheme = "gs://"

// ErrExists is returned by a create-only write to an object that already exists
var ErrExists = errors.New("object already exists")

// Location is a parsed document location
type Location struct {
	Bucket string
	Object string
	Path   string
}

// Remote reports whether l names a Cloud Storage object
func (l Location) Remote() bool { return l.Bucket != "" }

func (l Location) String() string {
	if l.Remote() {
		return scheme + l.Bucket + "/" + l.Object
	}
	return l.Path
}

// Parse splits a gs://bucket/object URL; anything else is a local path
func Parse(loc string) (Location, error) {
	if !strings.HasPrefix(loc, scheme) {
		if loc == "" {
			return Location{}, errors.New("empty location")
		}
		return Location{Path: loc}, nil
	}

	rest := strings.TrimPrefix(loc, scheme)
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return Location{}, fmt.Errorf("invalid storage URL %q: want gs://bucket/object", loc)
	}
	return Location{Bucket: bucket, Object: object}, nil
}

// Store moves document bytes to and from locations. The Cloud Storage client
// is created on first remote use.
type Store struct {
	client *gcs.Client
	logger *slog.Logger
	// CreateOnly refuses to overwrite existing remote objects
	CreateOnly bool
}

func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger}
}

// NewWithClient uses an existing Cloud Storage client
func NewWithClient(client *gcs.Client, logger *slog.Logger) *Store {
	s := New(logger)
	s.client = client
	return s
}

func (s *Store) bucket(ctx context.Context, name string) (*gcs.BucketHandle, error) {
	if s.client == nil {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Storage client: %w", err)
		}
		s.client = client
	}
	return s.client.Bucket(name), nil
}

// Read returns the bytes at loc
func (s *Store) Read(ctx context.Context, loc string) ([]byte, error) {
	l, err := Parse(loc)
	if err != nil {
		return nil, err
	}

	if !l.Remote() {
		data, err := os.ReadFile(l.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", l.Path, err)
		}
		return data, nil
	}

	bucket, err := s.bucket(ctx, l.Bucket)
	if err != nil {
		return nil, err
	}
	reader, err := bucket.Object(l.Object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", l, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", l, err)
	}
	s.logger.Debug("downloaded object", "location", l.String(), "bytes", len(data))
	return data, nil
}

// Write stores data at loc, creating local parent directories as needed
func (s *Store) Write(ctx context.Context, loc string, data []byte) error {
	l, err := Parse(loc)
	if err != nil {
		return err
	}

	if !l.Remote() {
		if dir := filepath.Dir(l.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(l.Path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", l.Path, err)
		}
		return nil
	}

	bucket, err := s.bucket(ctx, l.Bucket)
	if err != nil {
		return err
	}
	obj := bucket.Object(l.Object)
	if s.CreateOnly {
		obj = obj.If(gcs.Conditions{DoesNotExist: true})
	}

	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/pdf"
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", classify(err))
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS write: %w", classify(err))
	}
	s.logger.Info("uploaded object", "location", l.String(), "bytes", len(data))
	return nil
}

// Close releases the Cloud Storage client, if one was created
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// classify maps a failed precondition to ErrExists
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 412 {
		return fmt.Errorf("%w: %w", ErrExists, err)
	}
	return err
}
