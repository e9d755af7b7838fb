package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/accounthub/internal/filex"
	"github.com/dmitrijs2005/accounthub/internal/server/config"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

const sniffLen = 512

// S3Storage stores media in an S3-compatible bucket (AWS S3 or MinIO).
type S3Storage struct {
	client        *s3.Client
	bucket        string
	baseEndpoint  string
	publicBaseURL string
	now           func() time.Time
}

func NewS3Storage(ctx context.Context, cfg *config.Config) (*S3Storage, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Storage{
		client:        client,
		bucket:        cfg.S3Bucket,
		baseEndpoint:  strings.TrimRight(cfg.S3BaseEndpoint, "/"),
		publicBaseURL: strings.TrimRight(cfg.S3PublicBaseURL, "/"),
		now:           time.Now,
	}, nil
}

// Upload implements Storage.
func (s *S3Storage) Upload(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", nil
	}
	defer filex.RemoveQuietly(localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}

	contentType, err := sniffContentType(f)
	if err != nil {
		return "", err
	}

	key := s.objectKey(localPath)

	_, err = putObject(s.client, ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return s.publicURL(key), nil
}

func (s *S3Storage) objectKey(localPath string) string {
	d := s.now().UTC()
	base := filepath.Base(localPath)
	ext := strings.ToLower(filepath.Ext(base))

	name := slug.Make(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" {
		name = "file"
	}

	return fmt.Sprintf("media/%04d/%02d/%02d/%s-%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), name, ext)
}

func (s *S3Storage) publicURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return s.baseEndpoint + "/" + s.bucket + "/" + key
}

func sniffContentType(f io.ReadSeeker) (string, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("read header: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind: %w", err)
	}
	return http.DetectContentType(buf[:n]), nil
}
