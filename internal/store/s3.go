package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"databox/internal/databox"
)

// versionMetadataKey is the object metadata entry holding the record version.
const versionMetadataKey = "graph-version"

// S3Options configures an S3Store. Endpoint and UsePathStyle allow
// S3-compatible services such as MinIO.
type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	UsePathStyle    bool
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store keeps one object per tenant. The version lives in object metadata
// and writes are conditional on the ETag that was read, so a concurrent
// writer makes the upload fail with PreconditionFailed.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Store loads AWS configuration (static credentials when given) and
// creates the client.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 store requires a bucket")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
	}, nil
}

func (s *S3Store) key(tenant databox.TenantID) string {
	return s.prefix + "tenants/" + url.PathEscape(string(tenant)) + ".rec"
}

// Get writes the tenant record to w.
func (s *S3Store) Get(ctx context.Context, tenant databox.TenantID, w io.Writer) (int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(tenant)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("getting tenant object: %w", err)
	}
	defer out.Body.Close()

	version, err := parseVersionMetadata(out.Metadata)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(w, out.Body); err != nil {
		return 0, fmt.Errorf("reading tenant object: %w", err)
	}
	return version, nil
}

// Version returns the stored version, 0 if the tenant has no record.
func (s *S3Store) Version(ctx context.Context, tenant databox.TenantID) (int64, error) {
	version, _, err := s.head(ctx, tenant)
	return version, err
}

func (s *S3Store) head(ctx context.Context, tenant databox.TenantID) (int64, *string, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(tenant)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, nil, nil
		}
		return 0, nil, fmt.Errorf("heading tenant object: %w", err)
	}
	version, err := parseVersionMetadata(out.Metadata)
	if err != nil {
		return 0, nil, err
	}
	return version, out.ETag, nil
}

// Put uploads the record if baseVersion is current. The first write uses
// If-None-Match: * and later writes If-Match on the ETag that was checked.
func (s *S3Store) Put(ctx context.Context, tenant databox.TenantID, r io.Reader, size int64, baseVersion int64) (int64, error) {
	current, etag, err := s.head(ctx, tenant)
	if err != nil {
		return 0, err
	}
	if current != baseVersion {
		return 0, staleError(tenant, baseVersion, current)
	}

	next := baseVersion + 1
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(tenant)),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/octet-stream"),
		Metadata:      map[string]string{versionMetadataKey: strconv.FormatInt(next, 10)},
	}
	if baseVersion == 0 {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = etag
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		if isPreconditionFailed(err) {
			return 0, fmt.Errorf("tenant %s changed during write: %w", tenant, databox.ErrStaleVersion)
		}
		return 0, fmt.Errorf("uploading tenant object: %w", err)
	}
	return next, nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (s *S3Store) ValidateSetup(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Store) Close() error { return nil }

func parseVersionMetadata(meta map[string]string) (int64, error) {
	raw, ok := meta[versionMetadataKey]
	if !ok {
		return 0, fmt.Errorf("tenant object has no %s metadata", versionMetadataKey)
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version metadata: %w", err)
	}
	return version, nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}

var _ databox.Store = (*S3Store)(nil)
