package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shenikar/care_reporting_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutObject struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakePutObject) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	if params.Body != nil {
		data, _ := io.ReadAll(params.Body)
		f.body = string(data)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestUpload_Success_VirtualHostedURL(t *testing.T) {
	// Подготовка
	client := &fakePutObject{}
	store := NewS3Store(client, "care-evidence", "af-south-1", "")
	evidence := &models.Evidence{Filename: "clip.mp4", Size: 5, Body: strings.NewReader("video")}

	// Действие
	url, err := store.Upload(context.Background(), "videos/abc.mp4", evidence)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "https://care-evidence.s3.af-south-1.amazonaws.com/videos/abc.mp4", url)
	assert.Equal(t, "care-evidence", aws.ToString(client.input.Bucket))
	assert.Equal(t, "videos/abc.mp4", aws.ToString(client.input.Key))
	assert.Equal(t, models.DefaultEvidenceContentType, aws.ToString(client.input.ContentType))
	assert.Equal(t, int64(5), aws.ToInt64(client.input.ContentLength))
	assert.Equal(t, "video", client.body)
}

func TestUpload_PublicBaseURL(t *testing.T) {
	// Подготовка
	client := &fakePutObject{}
	store := NewS3Store(client, "care-evidence", "af-south-1", "https://cdn.example.org/media/")
	evidence := &models.Evidence{ContentType: "video/quicktime", Body: strings.NewReader("mov")}

	// Действие
	url, err := store.Upload(context.Background(), "videos/def.mp4", evidence)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/media/videos/def.mp4", url)
	assert.Equal(t, "video/quicktime", aws.ToString(client.input.ContentType))
	assert.Nil(t, client.input.ContentLength)
}

func TestUpload_ClientError(t *testing.T) {
	// Подготовка
	client := &fakePutObject{err: errors.New("access denied")}
	store := NewS3Store(client, "care-evidence", "af-south-1", "")

	// Действие
	url, err := store.Upload(context.Background(), "videos/x.mp4", &models.Evidence{Body: strings.NewReader("x")})

	// Проверки
	require.Error(t, err)
	assert.Empty(t, url)
	assert.ErrorContains(t, err, "access denied")
}
