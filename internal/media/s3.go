package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"renovateAi/internal/config"
)

// NewUploader returns an S3 uploader when a bucket and region are configured
// and the disabled uploader otherwise. Static keys win over the default AWS
// credential chain.
func NewUploader(ctx context.Context, cfg config.MediaConfig) (Uploader, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return Disabled(), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("media: aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint == "" {
			return
		}
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return newS3Uploader(client, cfg), nil
}

func awsOptions(cfg config.MediaConfig) []func(*awsconfig.LoadOptions) error {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return opts
	}
	static := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	return append(opts, awsconfig.WithCredentialsProvider(static))
}

// objectPutter is the part of *s3.Client the uploader needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Uploader struct {
	client objectPutter
	bucket string
	region string
	root   string
	prefix string
}

func newS3Uploader(client objectPutter, cfg config.MediaConfig) *s3Uploader {
	return &s3Uploader{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		root:   publicRoot(cfg),
		prefix: strings.Trim(cfg.KeyPrefix, "/"),
	}
}

// publicRoot is where rendered concepts are served from. Path-style
// endpoints such as MinIO serve the bucket under the endpoint itself.
func publicRoot(cfg config.MediaConfig) string {
	if root := strings.TrimRight(cfg.PublicURL, "/"); root != "" {
		return root
	}
	if cfg.Endpoint != "" && cfg.ForcePathStyle {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return ""
}

func (u *s3Uploader) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	if in.Body == nil {
		return UploadResult{}, errors.New("media: empty upload body")
	}
	key := u.objectKey(in.Folder, in.Filename)

	put := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   in.Body,
	}
	if in.ContentType != "" {
		put.ContentType = aws.String(in.ContentType)
	}
	if in.Size > 0 {
		put.ContentLength = aws.Int64(in.Size)
	}
	if _, err := u.client.PutObject(ctx, put); err != nil {
		return UploadResult{}, fmt.Errorf("media: put %s: %w", key, err)
	}
	return UploadResult{Key: key, URL: u.objectURL(key)}, nil
}

// objectKey appends a random suffix so a regenerated concept never
// overwrites an earlier render.
func (u *s3Uploader) objectKey(folder, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name := uuid.NewString() + ext
	if filename != "" && stem != "" && stem != "." {
		name = stem + "-" + name
	}
	return path.Join(u.prefix, strings.Trim(folder, "/"), name)
}

func (u *s3Uploader) objectURL(key string) string {
	if u.root == "" {
		return "https://" + u.bucket + ".s3." + u.region + ".amazonaws.com/" + key
	}
	return u.root + "/" + key
}
