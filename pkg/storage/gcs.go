package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

type GCSArchive struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSArchive uses application default credentials unless token is set.
func NewGCSArchive(ctx context.Context, bucket, prefix, token string) (*GCSArchive, error) {
	var opts []option.ClientOption
	if token != "" {
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init gcs client: %w", err)
	}
	return &GCSArchive{client: client, bucket: bucket, prefix: prefix}, nil
}

func (a *GCSArchive) Put(ctx context.Context, key, localPath string) error {
	key = objectName(a.prefix, key)
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	err = upload(ctx, f, func(ctx context.Context) io.WriteCloser {
		w := a.client.Bucket(a.bucket).Object(key).NewWriter(ctx)
		w.ContentType = contentType(localPath)
		return w
	})
	if err != nil {
		return fmt.Errorf("upload gs://%s/%s: %w", a.bucket, key, err)
	}
	logger.Log.WithFields(logrus.Fields{
		"bucket": a.bucket,
		"key":    key,
	}).Debug("Artifact archived to GCS")
	return nil
}

func (a *GCSArchive) Close() error { return a.client.Close() }

// upload copies src into a writer opened on its own context. The object is only committed by
// a Close after a complete copy; a failed copy cancels the context first, abandoning the upload.
func upload(ctx context.Context, src io.Reader, open func(context.Context) io.WriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := open(ctx)
	if _, err := io.Copy(w, src); err != nil {
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	case strings.HasSuffix(name, ".nii.gz"):
		return "application/gzip"
	}
	return "application/octet-stream"
}
