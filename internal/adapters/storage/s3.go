package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dkeye/Duet/internal/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const BackendS3 = "s3"

var ErrS3NotConfigured = errors.New("s3 sink not configured")

type S3Config struct {
	Endpoint   string        `mapstructure:"endpoint"`
	Region     string        `mapstructure:"region"`
	Bucket     string        `mapstructure:"bucket"`
	AccessKey  string        `mapstructure:"access_key"`
	SecretKey  string        `mapstructure:"secret_key"`
	PresignTTL time.Duration `mapstructure:"presign_ttl"`
}

func (c S3Config) Enabled() bool { return c.Bucket != "" }

// S3 pushes uploads to an S3-compatible bucket and hands back presigned
// download locators.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	now     func() time.Time
}

func NewS3(cfg S3Config) (*S3, error) {
	if !cfg.Enabled() {
		return nil, ErrS3NotConfigured
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 24 * time.Hour
	}
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: true,
	}
	if cfg.AccessKey != "" {
		opts.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""))
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	client := s3.New(opts)
	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		ttl:     cfg.PresignTTL,
		now:     time.Now,
	}, nil
}

func objectKey(meta core.Upload, name string) string {
	return "conversations/" + safe(string(meta.ConversationID)) + "/" + name
}

// Upload expects a seekable blob when the endpoint is plain HTTP.
func (s *S3) Upload(ctx context.Context, blob io.Reader, meta core.Upload) (core.StoredFile, error) {
	at := s.now().UTC()
	name := meta.Name
	if name == "" {
		name = FileName(meta, at)
	}
	key := objectKey(meta, name)
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "audio/wav"
	}

	counted := &countingReader{r: blob}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        blob,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"conversation-id": string(meta.ConversationID),
			"user-id":         string(meta.ParticipantID),
			"audio-type":      tagOrDefault(meta.Tag),
		},
	}
	var size int64
	if seeker, ok := blob.(io.Seeker); ok {
		end, err := seeker.Seek(0, io.SeekEnd)
		if err == nil {
			if _, err = seeker.Seek(0, io.SeekStart); err == nil {
				size = end
				input.ContentLength = aws.Int64(end)
			}
		}
	} else {
		input.Body = counted
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return core.StoredFile{}, fmt.Errorf("put %s: %w", key, err)
	}
	if size == 0 {
		size = counted.n
	}

	url, err := s.Presign(ctx, key)
	if err != nil {
		return core.StoredFile{}, err
	}

	log.Info().Str("module", "storage").Str("bucket", s.bucket).Str("key", key).Int64("size", size).Msg("stored in bucket")
	return core.StoredFile{
		ID:             uuid.NewString(),
		Filename:       name,
		OriginalName:   meta.OriginalName,
		ConversationID: meta.ConversationID,
		ParticipantID:  meta.ParticipantID,
		Tag:            tagOrDefault(meta.Tag),
		Size:           size,
		UploadedAt:     at,
		Locator:        url,
		Backend:        BackendS3,
	}, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Presign returns a fresh time-limited download URL for an object key.
func (s *S3) Presign(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}
