package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Options configures an S3 (or S3-compatible) bucket.
type S3Options struct {
	Bucket     string
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	PublicBase string
}

// S3Bucket is a Bucket backed by S3.
type S3Bucket struct {
	client     *s3.S3
	bucket     string
	publicBase string
}

// NewS3Bucket creates a session for the bucket. Static credentials are used when given,
// otherwise the default AWS credential chain applies.
func NewS3Bucket(opts S3Options) (*S3Bucket, error) {
	cfg := &aws.Config{
		Region:           aws.String(opts.Region),
		S3ForcePathStyle: aws.Bool(true),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
	}
	if opts.AccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &S3Bucket{
		client:     s3.New(sess),
		bucket:     opts.Bucket,
		publicBase: opts.PublicBase,
	}, nil
}

func (b *S3Bucket) Name() string { return b.bucket }

// Upload puts the object. Conflict responses are reported as ErrAlreadyExists.
func (b *S3Bucket) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err == nil {
		return nil
	}
	if isConflict(err) {
		return fmt.Errorf("%s/%s: %w", b.bucket, key, ErrAlreadyExists)
	}
	return fmt.Errorf("uploading %s/%s: %w", b.bucket, key, err)
}

func (b *S3Bucket) PublicURL(key string) (string, error) {
	return JoinPublicURL(b.publicBase, b.bucket, key)
}

func isConflict(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		switch reqErr.StatusCode() {
		case http.StatusConflict, http.StatusPreconditionFailed:
			return true
		}
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case "ObjectAlreadyExists", "PreconditionFailed", "ConditionalRequestConflict", "Duplicate":
			return true
		}
	}
	return false
}
