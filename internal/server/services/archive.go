// ArchiveService copies terminal payloads to S3-compatible object storage
// and hands out presigned download links for them.
package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/telegraph-app/telegraph/internal/common"
	sc "github.com/telegraph-app/telegraph/internal/server/config"
	"github.com/telegraph-app/telegraph/internal/server/models"
	"github.com/telegraph-app/telegraph/internal/server/repositories/repomanager"
)

// Seams for testing the AWS SDK calls without a live endpoint.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

type ArchiveService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
}

// NewArchiveService constructs an ArchiveService.
func NewArchiveService(db *sql.DB, m repomanager.RepositoryManager, config *sc.Config) *ArchiveService {
	return &ArchiveService{db: db, repomanager: m, config: config}
}

// Enabled reports whether archival is configured.
func (s *ArchiveService) Enabled() bool {
	return s.config.S3ArchiveEnabled && s.config.S3Bucket != ""
}

// GetRandomStorageKey builds a date-partitioned object key for a new archive.
func GetRandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("images/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *ArchiveService) getClient() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Archive uploads the terminal payload and records its storage key on the
// image row.
func (s *ArchiveService) Archive(ctx context.Context, image *models.Image) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}

	bucket := s.config.S3Bucket
	key := GetRandomStorageKey()

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(image.Payload),
	}); err != nil {
		return fmt.Errorf("error uploading payload: %v", err)
	}

	if err := s.repomanager.Images(s.db).SetStorageKey(ctx, image.ID, key); err != nil {
		return fmt.Errorf("error recording storage key: %v", err)
	}
	return nil
}

// PresignedGetURL returns a 15-minute download link for an archived terminal
// image. Unknown, live, or unarchived images yield ErrorNotFound; a malformed
// ID is rejected before the store is touched.
func (s *ArchiveService) PresignedGetURL(ctx context.Context, imageID string) (string, error) {
	if _, err := uuid.Parse(imageID); err != nil {
		return "", common.ErrorInvalidInput
	}

	image, err := s.repomanager.Images(s.db).GetTerminal(ctx, imageID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		return "", common.ErrorInternal
	}
	if image.StorageKey == "" {
		return "", common.ErrorNotFound
	}

	client, err := s.getClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &image.StorageKey,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
