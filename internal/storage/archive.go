package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/dfwthrift/contentpipe/internal/models"
)

// Archive keeps an audit copy of every saved pipeline item as harvested
type Archive interface {
	Put(ctx context.Context, item *models.PipelineItem) error
}

type archiveRecord struct {
	ID             string                `json:"id"`
	SourceID       string                `json:"source_id,omitempty"`
	RelevanceScore int                   `json:"relevance_score"`
	RawData        models.RawContentItem `json:"raw_data"`
	ArchivedAt     time.Time             `json:"archived_at"`
}

func archiveKey(item *models.PipelineItem, at time.Time) string {
	return fmt.Sprintf("raw/%s/%d_%s.json", at.Format("2006/01/02"), at.Unix(), item.ID)
}

func encodeRecord(item *models.PipelineItem, at time.Time) ([]byte, error) {
	data, err := json.MarshalIndent(archiveRecord{
		ID:             item.ID,
		SourceID:       item.SourceID,
		RelevanceScore: item.RelevanceScore,
		RawData:        item.RawData,
		ArchivedAt:     at,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal archive record: %w", err)
	}
	return data, nil
}

// FileArchive writes records under basePath/raw/YYYY/MM/DD
type FileArchive struct {
	basePath string
	mu       sync.Mutex
	now      func() time.Time
}

func NewFileArchive(basePath string) (*FileArchive, error) {
	if err := os.MkdirAll(filepath.Join(basePath, "raw"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FileArchive{basePath: basePath, now: time.Now}, nil
}

func (a *FileArchive) Put(ctx context.Context, item *models.PipelineItem) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	at := a.now().UTC()
	path := filepath.Join(a.basePath, filepath.FromSlash(archiveKey(item, at)))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create date directory: %w", err)
	}

	data, err := encodeRecord(item, at)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	return nil
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive writes records to an S3-compatible bucket such as Cloudflare R2
type S3Archive struct {
	client objectPutter
	bucket string
	now    func() time.Time
}

// NewS3Archive builds a client for endpoint with static credentials and path-style addressing
func NewS3Archive(ctx context.Context, endpoint, accessKey, secretKey, bucket string) (*S3Archive, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	logger.Get().Info().
		Str("endpoint", endpoint).
		Str("bucket", bucket).
		Msg("S3 archive initialized")

	return &S3Archive{client: client, bucket: bucket, now: time.Now}, nil
}

func (a *S3Archive) Put(ctx context.Context, item *models.PipelineItem) error {
	at := a.now().UTC()
	data, err := encodeRecord(item, at)
	if err != nil {
		return err
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(archiveKey(item, at)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive record: %w", err)
	}
	return nil
}
