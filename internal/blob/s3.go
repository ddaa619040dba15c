package blob

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shenikar/care_reporting_system/internal/models"
	"github.com/shenikar/care_reporting_system/internal/service"
)

// PutObjectAPI - часть клиента S3, нужная для загрузки
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store загружает доказательства в бакет S3
type S3Store struct {
	client        PutObjectAPI
	bucket        string
	region        string
	publicBaseURL string
}

func NewS3Store(client PutObjectAPI, bucket, region, publicBaseURL string) service.BlobStore {
	return &S3Store{
		client:        client,
		bucket:        bucket,
		region:        region,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

// Upload передает содержимое потоком и возвращает публичную ссылку на объект
func (s *S3Store) Upload(ctx context.Context, key string, evidence *models.Evidence) (string, error) {
	contentType := evidence.ContentType
	if contentType == "" {
		contentType = models.DefaultEvidenceContentType
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        evidence.Body,
		ContentType: aws.String(contentType),
	}
	if evidence.Size > 0 {
		input.ContentLength = aws.Int64(evidence.Size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to put object %s into bucket %s: %w", key, s.bucket, err)
	}
	return s.ObjectURL(key), nil
}

// ObjectURL строит ссылку на объект: через публичный адрес, если он задан,
// иначе в формате virtual-hosted бакета
func (s *S3Store) ObjectURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
