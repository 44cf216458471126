// Package download fetches product data from the Copernicus Data Space
// eodata object store over its S3-compatible API.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultEndpoint is the Data Space eodata S3 gateway.
	DefaultEndpoint = "https://eodata.dataspace.copernicus.eu"
	// DefaultRegion is the region label the gateway expects in signatures.
	DefaultRegion = "default"

	defaultBucket = "eodata"
)

// ErrMissingCredentials indicates the manager was asked to download without
// eodata access keys configured.
var ErrMissingCredentials = errors.New("download: eodata credentials required")

// Credentials holds the user-issued eodata S3 key pair.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// FileProgress reports download progress for a single object.
type FileProgress struct {
	Bucket     string
	Key        string
	FileName   string
	Downloaded int64
	Total      int64
}

// ProgressFunc is invoked as bytes are written for an individual object.
type ProgressFunc func(FileProgress)

// Config controls how downloads are executed.
type Config struct {
	Endpoint    string
	Region      string
	Credentials Credentials
	Concurrency int
	Progress    ProgressFunc
}

// Manager downloads product trees addressed by eodata storage paths.
type Manager interface {
	Download(ctx context.Context, remotePath, destDir string) error
}

type objectLister interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type objectDownloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*s3manager.Downloader)) (int64, error)
}

type manager struct {
	cfg Config

	mu         sync.Mutex
	lister     objectLister
	downloader objectDownloader
	newClients func(aws.Config) (objectLister, objectDownloader)
}

// NewManager constructs a download manager with the provided configuration.
func NewManager(cfg Config) Manager {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &manager{cfg: cfg, newClients: newS3Clients}
}

func newS3Clients(cfg aws.Config) (objectLister, objectDownloader) {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client, s3manager.NewDownloader(client)
}

// ParseLocation resolves a storage path into an S3 bucket and key. Accepted
// forms: "s3://bucket/key", "/eodata/key" and a bare "key" (which addresses
// the eodata bucket).
func ParseLocation(remotePath string) (bucket, key string, err error) {
	trimmed := strings.TrimSpace(remotePath)
	if trimmed == "" {
		return "", "", errors.New("download: empty storage path")
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "s3://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return "", "", fmt.Errorf("download: parse s3 url: %w", err)
		}
		bucket = parsed.Host
		key = strings.Trim(parsed.Path, "/")
		if bucket == "" || key == "" {
			return "", "", fmt.Errorf("download: incomplete s3 url %q", remotePath)
		}
		return bucket, key, nil
	}
	key = strings.Trim(trimmed, "/")
	if rest, ok := strings.CutPrefix(key, defaultBucket+"/"); ok {
		key = rest
	}
	if key == "" {
		return "", "", fmt.Errorf("download: no object key in %q", remotePath)
	}
	return defaultBucket, key, nil
}

// Download copies everything stored under remotePath into destDir, keeping
// the product's directory layout. A path naming a single object downloads
// just that object.
func (m *manager) Download(ctx context.Context, remotePath, destDir string) error {
	if destDir == "" {
		return errors.New("download: destination directory required")
	}
	bucket, prefix, err := ParseLocation(remotePath)
	if err != nil {
		return err
	}
	lister, downloader, err := m.clients()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("download: create destination directory: %w", err)
	}

	keys, sizes, err := listObjects(ctx, lister, bucket, prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		// Not a prefix; treat the path as one object.
		keys = []string{prefix}
		sizes = []int64{0}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for i, key := range keys {
		g.Go(func() error {
			return m.downloadObject(ctx, downloader, bucket, prefix, key, sizes[i], destDir)
		})
	}
	return g.Wait()
}

func (m *manager) clients() (objectLister, objectDownloader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lister != nil && m.downloader != nil {
		return m.lister, m.downloader, nil
	}
	creds := m.cfg.Credentials
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return nil, nil, ErrMissingCredentials
	}
	cfg := aws.Config{
		Region:       m.cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		BaseEndpoint: aws.String(m.cfg.Endpoint),
	}
	m.lister, m.downloader = m.newClients(cfg)
	return m.lister, m.downloader, nil
}

func listObjects(ctx context.Context, lister objectLister, bucket, prefix string) ([]string, []int64, error) {
	var keys []string
	var sizes []int64
	paginator := s3.NewListObjectsV2Paginator(lister, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("download: list objects: %w", err)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			keys = append(keys, key)
			sizes = append(sizes, aws.ToInt64(object.Size))
		}
	}
	return keys, sizes, nil
}

func (m *manager) downloadObject(ctx context.Context, downloader objectDownloader, bucket, prefix, key string, size int64, destDir string) (err error) {
	relative := strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
	if relative == "" {
		relative = filepath.Base(key)
	}
	finalPath := filepath.Join(destDir, filepath.FromSlash(relative))
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("download: create directory: %w", err)
	}

	tmpPath := finalPath + ".part"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("download: create temp file: %w", err)
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	writer := newProgressWriterAt(out, m.cfg.Progress, FileProgress{
		Bucket:   bucket,
		Key:      key,
		FileName: filepath.Base(finalPath),
		Total:    size,
	})

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if _, err = downloader.Download(ctx, writer, input); err != nil {
		return fmt.Errorf("download: get %s: %w", key, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("download: close temp file: %w", err)
	}
	if err = os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("download: rename temp file: %w", err)
	}
	return nil
}

type progressWriterAt struct {
	dst        io.WriterAt
	progress   ProgressFunc
	meta       FileProgress
	downloaded atomic.Int64
}

func newProgressWriterAt(dst io.WriterAt, fn ProgressFunc, meta FileProgress) *progressWriterAt {
	return &progressWriterAt{dst: dst, progress: fn, meta: meta}
}

func (w *progressWriterAt) WriteAt(p []byte, off int64) (int, error) {
	n, err := w.dst.WriteAt(p, off)
	if n > 0 && w.progress != nil {
		meta := w.meta
		meta.Downloaded = w.downloaded.Add(int64(n))
		w.progress(meta)
	}
	return n, err
}
