package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"highlight-reel-pipeline/config"
	"highlight-reel-pipeline/types"
)

// ReportFile is the report's name inside a run directory
const ReportFile = "run_report.json"

// ReportName is the report's file name inside its run directory. A resumed
// run writes run_report_<run id>.json next to the report it resumed from.
func ReportName(report *types.PipelineRunReport) string {
	if report.ResumedFrom != "" {
		return "run_report_" + report.RunID + ".json"
	}
	return ReportFile
}

// Sink receives the finished run report
type Sink interface {
	Name() string
	Publish(ctx context.Context, report *types.PipelineRunReport) error
}

// LatestSink overwrites <dir>/latest_run.json with every report
type LatestSink struct {
	Dir string
}

func (s *LatestSink) Name() string { return "latest" }

func (s *LatestSink) Publish(_ context.Context, report *types.PipelineRunReport) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(s.Dir, "latest_run.json"), report)
}

// objectStore is the part of *minio.Client the sink uses
type objectStore interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOSink uploads the report, and optionally the reel, to a bucket under
// <prefix>/<run id>/.
type MinIOSink struct {
	client     objectStore
	bucket     string
	prefix     string
	uploadReel bool
}

// NewMinIOSink connects and creates the bucket when it does not exist
func NewMinIOSink(ctx context.Context, cfg config.MinIOConfig, accessKey, secretKey string) (*MinIOSink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return &MinIOSink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, uploadReel: cfg.UploadReel}, nil
}

func (s *MinIOSink) Name() string { return "minio" }

func (s *MinIOSink) Publish(ctx context.Context, report *types.PipelineRunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	key := objectKey(s.prefix, report.RunID, ReportName(report))
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload report: %w", err)
	}
	if s.uploadReel && report.OK && report.OutputPath != "" {
		key := objectKey(s.prefix, report.RunID, filepath.Base(report.OutputPath))
		if _, err := s.client.FPutObject(ctx, s.bucket, key, report.OutputPath, minio.PutObjectOptions{ContentType: "video/mp4"}); err != nil {
			return fmt.Errorf("failed to upload reel: %w", err)
		}
	}
	return nil
}

func objectKey(prefix, runID, name string) string {
	return path.Join(prefix, runID, name)
}

func writeJSON(p string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", p, err)
	}
	return os.WriteFile(p, data, 0644)
}

func readJSON(p string, v any) error {
	data, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
