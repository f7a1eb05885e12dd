// Package storage uploads exported artifacts to object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/config"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
)

// Archive stores a local file under key.
type Archive interface {
	Put(ctx context.Context, key, localPath string) error
	Close() error
}

// FromConfig builds the archive selected by ARCHIVE_BACKEND.
func FromConfig(ctx context.Context, cfg *config.Config) (Archive, error) {
	backend := strings.ToLower(cfg.ArchiveBackend)
	if backend == "" || backend == "none" {
		return Nop{}, nil
	}
	if cfg.ArchiveBucket == "" {
		return nil, errs.NewConfigurationError(fmt.Errorf("archive backend %s needs ARCHIVE_BUCKET", backend))
	}
	switch backend {
	case "s3":
		return NewS3Archive(ctx, cfg.ArchiveBucket, cfg.ArchivePrefix)
	case "gcs":
		return NewGCSArchive(ctx, cfg.ArchiveBucket, cfg.ArchivePrefix, cfg.GCSToken)
	}
	return nil, errs.NewConfigurationError(fmt.Errorf("unknown archive backend %q", cfg.ArchiveBackend))
}

// Key turns an artifact path below root into a slash separated object key.
func Key(root, artifact string) (string, error) {
	rel, err := filepath.Rel(root, artifact)
	if err != nil {
		return "", err
	}
	if rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", errors.New("artifact is outside the export root")
	}
	return filepath.ToSlash(rel), nil
}

func objectName(prefix, key string) string {
	return path.Join(prefix, key)
}

type Nop struct{}

func (Nop) Put(context.Context, string, string) error { return nil }

func (Nop) Close() error { return nil }
