package storage

import (
	"bitwise74/model-vault/internal/model"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const (
	defaultS3Timeout       = 30 * time.Second
	defaultS3UploadTimeout = 10 * time.Minute
	defaultPresignExpiry   = 15 * time.Minute
	defaultPartSize        = 8 << 20
)

type S3Options struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	// Endpoint overrides the AWS endpoint for S3 compatible stores.
	// When empty and AccountID is set the Cloudflare R2 endpoint is used.
	Endpoint  string
	AccountID string
	PathStyle bool

	KeyPrefix     string
	PublicBaseURL string
	PresignExpiry time.Duration

	// Timeout bounds metadata calls, UploadTimeout bounds transfers
	Timeout       time.Duration
	UploadTimeout time.Duration
	PartSize      int64

	ClientOptions []func(*s3.Options)
}

// S3Storage stores objects in an S3 compatible bucket
type S3Storage struct {
	C       *s3.Client
	Bucket  *string
	opts    S3Options
	presign *s3.PresignClient
}

func NewS3(ctx context.Context, o S3Options) (*S3Storage, error) {
	if o.Bucket == "" {
		return nil, errors.New("bucket can't be empty")
	}

	if o.Timeout <= 0 {
		o.Timeout = defaultS3Timeout
	}
	if o.UploadTimeout <= 0 {
		o.UploadTimeout = defaultS3UploadTimeout
	}
	if o.PresignExpiry <= 0 {
		o.PresignExpiry = defaultPresignExpiry
	}
	if o.PartSize < manager.MinUploadPartSize {
		o.PartSize = defaultPartSize
	}

	region := o.Region
	endpoint := o.Endpoint
	if endpoint == "" && o.AccountID != "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", o.AccountID)
		region = "auto"
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			o.AccessKeyID,
			o.SecretAccessKey,
			"",
		)),
		config.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(o.UploadTimeout)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config, %w", err)
	}

	optFns := []func(*s3.Options){
		func(so *s3.Options) {
			if endpoint != "" {
				so.BaseEndpoint = aws.String(endpoint)
			}
			so.UsePathStyle = o.PathStyle
			// Most S3 compatible stores don't accept the newer trailing checksums
			so.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		},
	}
	optFns = append(optFns, o.ClientOptions...)

	client := s3.NewFromConfig(cfg, optFns...)
	bucket := aws.String(o.Bucket)

	headCtx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	_, err = client.HeadBucket(headCtx, &s3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("bucket '%s' does not exist", o.Bucket)
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &S3Storage{
		C:       client,
		Bucket:  bucket,
		opts:    o,
		presign: s3.NewPresignClient(client),
	}, nil
}

func (s *S3Storage) Backend() string {
	return model.BackendRemote
}

func (s *S3Storage) Upload(ctx context.Context, r io.Reader, suggestedName string) (Location, error) {
	storedName := NewStoredName(suggestedName)
	key := s.opts.KeyPrefix + storedName

	ctx, cancel := context.WithTimeout(ctx, s.opts.UploadTimeout)
	defer cancel()

	cr := &countingReader{ctx: ctx, r: r}

	// Small bodies go out as a single PutObject, anything bigger than one
	// part is sent as a multipart upload
	uploader := manager.NewUploader(s.C, func(u *manager.Uploader) {
		u.Concurrency = 5
		u.PartSize = s.opts.PartSize
	})

	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       s.Bucket,
		Key:          aws.String(key),
		Body:         cr,
		ContentType:  aws.String(MimeType(Ext(storedName))),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return Location{}, writeErr(s.Backend(), fmt.Errorf("failed to upload object, %w", err))
	}

	return Location{
		Backend:     s.Backend(),
		StoredName:  storedName,
		ExternalRef: key,
		Size:        cr.n,
	}, nil
}

func (s *S3Storage) Download(ctx context.Context, loc Location) (io.ReadCloser, error) {
	key, err := s.key(loc)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.UploadTimeout)

	out, err := s.C.GetObject(ctx, &s3.GetObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		cancel()

		if isNotFound(err) {
			return nil, ErrStorageNotFound
		}

		return nil, fmt.Errorf("failed to get object, %w", err)
	}

	return &cancelOnClose{ReadCloser: out.Body, cancel: cancel}, nil
}

func (s *S3Storage) Delete(ctx context.Context, loc Location) (bool, error) {
	exists, err := s.Exists(ctx, loc)
	if err != nil {
		return false, err
	}

	// DeleteObject succeeds for absent keys too, so the head request is
	// the only way to tell the two apart
	if !exists {
		return false, nil
	}

	key, _ := s.key(loc)

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	_, err = s.C.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to delete object, %w", err)
	}

	return true, nil
}

func (s *S3Storage) Exists(ctx context.Context, loc Location) (bool, error) {
	key, err := s.key(loc)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	_, err = s.C.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}

		return false, unknownErr(err)
	}

	return true, nil
}

func (s *S3Storage) ResolveURL(ctx context.Context, loc Location) (string, error) {
	key, err := s.key(loc)
	if err != nil {
		return "", err
	}

	if s.opts.PublicBaseURL != "" {
		return strings.TrimRight(s.opts.PublicBaseURL, "/") + "/" + key, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.opts.PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign object url, %w", err)
	}

	return req.URL, nil
}

func (s *S3Storage) key(loc Location) (string, error) {
	if loc.ExternalRef != "" {
		return loc.ExternalRef, nil
	}

	if !validStoredName(loc.StoredName) {
		return "", fmt.Errorf("%w, %q", ErrInvalidLocation, loc.StoredName)
	}

	return s.opts.KeyPrefix + loc.StoredName, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	var nb *types.NoSuchBucket
	if errors.As(err, &nsk) || errors.As(err, &nf) || errors.As(err, &nb) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}

	return false
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
