package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// DefaultPrefix is the key prefix archived results land under.
const DefaultPrefix = "quiz-results"

// Config holds the archive's bucket and credentials. Empty keys fall back to the
// default AWS credential chain.
type Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

// Uploader is the part of manager.Uploader the archive needs.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// ResultsArchive writes each finished session as one JSON object.
type ResultsArchive struct {
	uploader Uploader
	bucket   string
	prefix   string
	logger   *zap.Logger
}

// NewResultsArchive builds an S3-backed archive from cfg.
func NewResultsArchive(ctx context.Context, cfg Config, logger *zap.Logger) (*ResultsArchive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	} else {
		logger.Info("results archive using default AWS credential chain", zap.String("bucket", cfg.Bucket))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	uploader := manager.NewUploader(s3.NewFromConfig(awsCfg))
	return NewResultsArchiveWithUploader(uploader, cfg.Bucket, cfg.Prefix, logger), nil
}

func NewResultsArchiveWithUploader(uploader Uploader, bucket, prefix string, logger *zap.Logger) *ResultsArchive {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultsArchive{uploader: uploader, bucket: bucket, prefix: prefix, logger: logger}
}

// ObjectKey returns {prefix}/{quiz_id}/{session_id}.json.
func (a *ResultsArchive) ObjectKey(result domain.SessionResult) string {
	return path.Join(a.prefix, result.QuizID, result.SessionID+".json")
}

func (a *ResultsArchive) SaveResults(ctx context.Context, result domain.SessionResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	key := a.ObjectKey(result)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload results: %w", err)
	}
	a.logger.Debug("results archived", zap.String("bucket", a.bucket), zap.String("key", key))
	return nil
}
