package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestParseLocation(t *testing.T) {
	cases := []struct {
		in     string
		bucket string
		key    string
		err    bool
	}{
		{in: "/eodata/Sentinel-2/MSI/L2A/product.SAFE", bucket: "eodata", key: "Sentinel-2/MSI/L2A/product.SAFE"},
		{in: "eodata/Sentinel-2/x", bucket: "eodata", key: "Sentinel-2/x"},
		{in: "Sentinel-2/x", bucket: "eodata", key: "Sentinel-2/x"},
		{in: "s3://custom-bucket/some/key", bucket: "custom-bucket", key: "some/key"},
		{in: "S3://custom-bucket/some/key", bucket: "custom-bucket", key: "some/key"},
		{in: "", err: true},
		{in: "   ", err: true},
		{in: "/eodata/", err: true},
		{in: "s3://bucket-only", err: true},
	}
	for _, tc := range cases {
		bucket, key, err := ParseLocation(tc.in)
		if tc.err {
			if err == nil {
				t.Fatalf("ParseLocation(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseLocation(%q): %v", tc.in, err)
		}
		if bucket != tc.bucket || key != tc.key {
			t.Fatalf("ParseLocation(%q) = %q/%q, want %q/%q", tc.in, bucket, key, tc.bucket, tc.key)
		}
	}
}

type fakeLister struct {
	prefix  string
	objects map[string]string
}

func (f *fakeLister) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if got := aws.ToString(params.Prefix); got != f.prefix {
		return nil, fmt.Errorf("unexpected prefix %q, want %q", got, f.prefix)
	}
	out := &s3.ListObjectsV2Output{}
	for key, content := range f.objects {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(int64(len(content))),
		})
	}
	return out, nil
}

type fakeDownloader struct {
	mu      sync.Mutex
	objects map[string]string
	failKey string
	inputs  []s3.GetObjectInput
}

func (f *fakeDownloader) Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*s3manager.Downloader)) (int64, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, *input)
	f.mu.Unlock()

	key := aws.ToString(input.Key)
	if key == f.failKey {
		return 0, errors.New("access denied")
	}
	content, ok := f.objects[key]
	if !ok {
		return 0, fmt.Errorf("no such key %q", key)
	}
	if _, err := w.WriteAt([]byte(content), 0); err != nil {
		return 0, err
	}
	return int64(len(content)), nil
}

func newTestManager(t *testing.T, cfg Config, lister objectLister, downloader objectDownloader) *manager {
	t.Helper()
	m, ok := NewManager(cfg).(*manager)
	if !ok {
		t.Fatalf("unexpected manager type")
	}
	m.lister = lister
	m.downloader = downloader
	return m
}

func TestDownloadProductTree(t *testing.T) {
	const prefix = "Sentinel-2/MSI/L2A/product.SAFE"
	objects := map[string]string{
		prefix + "/manifest.safe":       "manifest-data",
		prefix + "/GRANULE/IMG/B04.jp2": "band-4-data",
		prefix + "/GRANULE/IMG/B08.jp2": "band-8-data",
	}

	var progressed sync.Map
	m := newTestManager(t, Config{
		Progress: func(p FileProgress) {
			progressed.Store(p.Key, p.Downloaded)
		},
	}, &fakeLister{prefix: prefix + "/", objects: objects}, &fakeDownloader{objects: objects})

	dest := t.TempDir()
	if err := m.Download(context.Background(), "/eodata/"+prefix, dest); err != nil {
		t.Fatalf("Download returned error: %v", err)
	}

	checks := map[string]string{
		"manifest.safe":       "manifest-data",
		"GRANULE/IMG/B04.jp2": "band-4-data",
		"GRANULE/IMG/B08.jp2": "band-8-data",
	}
	for rel, want := range checks {
		data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("expected file %s: %v", rel, err)
		}
		if string(data) != want {
			t.Fatalf("file %s: got %q want %q", rel, data, want)
		}
	}

	entries, err := filepath.Glob(filepath.Join(dest, "*.part"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftover temp files, got %v", entries)
	}

	for key := range objects {
		if _, ok := progressed.Load(key); !ok {
			t.Fatalf("expected progress for %s", key)
		}
	}
}

func TestDownloadSingleObjectFallback(t *testing.T) {
	const key = "Sentinel-2/quicklook.jpg"
	downloader := &fakeDownloader{objects: map[string]string{key: "jpeg-bytes"}}
	m := newTestManager(t, Config{}, &fakeLister{prefix: key + "/"}, downloader)

	dest := t.TempDir()
	if err := m.Download(context.Background(), "/eodata/"+key, dest); err != nil {
		t.Fatalf("Download returned error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "quicklook.jpg"))
	if err != nil {
		t.Fatalf("expected fallback object file: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("unexpected contents: %q", data)
	}
	if len(downloader.inputs) != 1 || aws.ToString(downloader.inputs[0].Bucket) != "eodata" {
		t.Fatalf("unexpected downloader inputs: %+v", downloader.inputs)
	}
}

func TestDownloadCleansUpOnFailure(t *testing.T) {
	const prefix = "Sentinel-1/product.SAFE"
	objects := map[string]string{
		prefix + "/ok.dat":  "fine",
		prefix + "/bad.dat": "never-served",
	}
	m := newTestManager(t, Config{Concurrency: 1},
		&fakeLister{prefix: prefix + "/", objects: objects},
		&fakeDownloader{objects: objects, failKey: prefix + "/bad.dat"},
	)

	dest := t.TempDir()
	err := m.Download(context.Background(), "/eodata/"+prefix, dest)
	if err == nil || !strings.Contains(err.Error(), "bad.dat") {
		t.Fatalf("expected failure naming the object, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "bad.dat.part")); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be removed, got %v", err)
	}
}

func TestDownloadRequiresCredentials(t *testing.T) {
	m := NewManager(Config{})
	err := m.Download(context.Background(), "/eodata/Sentinel-2/x", t.TempDir())
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestDownloadRequiresDestination(t *testing.T) {
	m := NewManager(Config{})
	err := m.Download(context.Background(), "/eodata/Sentinel-2/x", "")
	if err == nil || !strings.Contains(err.Error(), "destination directory") {
		t.Fatalf("expected destination error, got %v", err)
	}
}
