package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// newS3Client builds an S3 client from cfg. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain.
func newS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	if cfg.Bucket == "" {
		return nil, ErrS3NotConfigured
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

// S3TemplateStore keeps the template table as a single S3 object.
type S3TemplateStore struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3TemplateStore creates a store for the object at key in cfg.Bucket.
func NewS3TemplateStore(ctx context.Context, cfg S3Config, key string) (*S3TemplateStore, error) {
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &S3TemplateStore{client: client, bucket: cfg.Bucket, key: key}, nil
}

// Load downloads the table. A missing object means nothing has been stored.
func (s *S3TemplateStore) Load(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get template object: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read template object: %w", err)
	}
	return data, nil
}

// Save uploads data, replacing the previous object.
func (s *S3TemplateStore) Save(ctx context.Context, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put template object: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

// S3Uploader pushes exported videos to an S3 bucket.
type S3Uploader struct {
	client *s3.Client
	bucket string
	region string
}

// NewS3Uploader creates a new S3Uploader.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &S3Uploader{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// Upload uploads data to S3 and returns the public URL.
func (u *S3Uploader) Upload(ctx context.Context, key string, data io.Reader) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   data,
	})
	if err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key)
	return url, nil
}

// UploadFile opens path and uploads its content under key.
func UploadFile(ctx context.Context, u Uploader, key, path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is an export written by the editor
	if err != nil {
		return "", fmt.Errorf("open export: %w", err)
	}
	defer func() { _ = f.Close() }()
	return u.Upload(ctx, key, f)
}
