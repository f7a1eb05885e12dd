package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/config"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
)

func TestKeyIsRelativeToRoot(t *testing.T) {
	root := filepath.Join("srv", "export")
	key, err := Key(root, filepath.Join(root, "db", "DOE^JANE", "1.2", "1.2.3", "10_15_00.nrrd"))
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if key != "db/DOE^JANE/1.2/1.2.3/10_15_00.nrrd" {
		t.Fatalf("unexpected key %s", key)
	}
	if _, err := Key(root, filepath.Join("srv", "elsewhere", "x.nrrd")); err == nil {
		t.Fatalf("paths outside the root must be rejected")
	}
	if got := objectName("archive", key); got != "archive/"+key {
		t.Fatalf("prefix not applied: %s", got)
	}
}

func TestFromConfig(t *testing.T) {
	a, err := FromConfig(context.Background(), &config.Config{ArchiveBackend: "none"})
	if err != nil {
		t.Fatalf("none: %v", err)
	}
	if _, ok := a.(Nop); !ok {
		t.Fatalf("expected Nop, got %T", a)
	}

	for _, cfg := range []*config.Config{
		{ArchiveBackend: "s3"},
		{ArchiveBackend: "ftp", ArchiveBucket: "b"},
	} {
		if _, err := FromConfig(context.Background(), cfg); !errs.IsConfigurationError(err) {
			t.Fatalf("%s: expected configuration error, got %v", cfg.ArchiveBackend, err)
		}
	}
}

func TestContentType(t *testing.T) {
	if contentType("a/10_15_00.nii.gz") != "application/gzip" || contentType("a/b.nrrd") != "application/octet-stream" {
		t.Fatalf("unexpected content types")
	}
}

// recordingWriter notes whether its context was cancelled by the time Close ran.
type recordingWriter struct {
	ctx       context.Context
	buf       bytes.Buffer
	closedErr error
	closed    bool
}

func (w *recordingWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *recordingWriter) Close() error {
	w.closed = true
	w.closedErr = w.ctx.Err()
	return w.closedErr
}

func TestUploadCommitsCompleteCopy(t *testing.T) {
	w := &recordingWriter{}
	err := upload(context.Background(), strings.NewReader("volume"), func(ctx context.Context) io.WriteCloser {
		w.ctx = ctx
		return w
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !w.closed || w.closedErr != nil || w.buf.String() != "volume" {
		t.Fatalf("expected a committed upload, got closed=%v ctx=%v data=%q", w.closed, w.closedErr, w.buf.String())
	}
}

func TestUploadAbandonsPartialCopy(t *testing.T) {
	disk := errors.New("read failed")
	w := &recordingWriter{}
	err := upload(context.Background(), io.MultiReader(strings.NewReader("half"), iotest.ErrReader(disk)), func(ctx context.Context) io.WriteCloser {
		w.ctx = ctx
		return w
	})
	if !errors.Is(err, disk) {
		t.Fatalf("expected the read error, got %v", err)
	}
	if !w.closed || !errors.Is(w.closedErr, context.Canceled) {
		t.Fatalf("writer must be closed on a cancelled context, got closed=%v ctx=%v", w.closed, w.closedErr)
	}
}
