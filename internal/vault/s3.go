package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"freelanceflow/internal/ff"
)

// versionMetaKey is the user metadata key carrying the item version.
const versionMetaKey = "ff-version"

// Environment overrides for S3-compatible endpoints and static keys.
const (
	EnvS3Endpoint        = "FF_S3_ENDPOINT"
	EnvS3AccessKeyID     = "FF_S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey = "FF_S3_SECRET_ACCESS_KEY"
)

// S3Client is the subset of the S3 API the vault uses.
type S3Client interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Vault stores each item as one object at <prefix>/<hostID>/<name>. The
// version travels in the object's user metadata, so item and version are
// replaced together.
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   S3Client
	uploader *manager.Uploader
}

// NewS3Vault wraps an existing client.
func NewS3Vault(name, bucket, prefix string, client S3Client) *S3Vault {
	return &S3Vault{
		name:     name,
		bucket:   bucket,
		prefix:   prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

// NewS3VaultFromEnv builds a client from the default AWS credential chain.
// Static keys and a custom endpoint can be supplied through the FF_S3_*
// environment variables.
func NewS3VaultFromEnv(ctx context.Context, name, bucket, prefix, region string) (*S3Vault, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}

	opts := []func(*awscfg.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awscfg.WithRegion(region))
	}
	keyID, secret := os.Getenv(EnvS3AccessKeyID), os.Getenv(EnvS3SecretAccessKey)
	if keyID != "" && secret != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keyID, secret, ""),
		))
	}

	awsConfig, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	endpoint := os.Getenv(EnvS3Endpoint)
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Vault(name, bucket, prefix, client), nil
}

func (v *S3Vault) key(hostID, name string) string {
	return path.Join(v.prefix, hostID, name)
}

func (v *S3Vault) PutMetadata(hostID string, name string, r io.Reader, size int64, version int64) error {
	_, err := v.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket:        aws.String(v.bucket),
		Key:           aws.String(v.key(hostID, name)),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/octet-stream"),
		Metadata:      map[string]string{versionMetaKey: strconv.FormatInt(version, 10)},
	})
	if err != nil {
		return fmt.Errorf("uploading %s to vault %s: %w", name, v.name, err)
	}
	return nil
}

// GetMetadataVersion returns 0 when the object does not exist.
func (v *S3Vault) GetMetadataVersion(hostID string, name string) (int64, error) {
	out, err := v.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.key(hostID, name)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading %s version from vault %s: %w", name, v.name, err)
	}

	raw, ok := out.Metadata[versionMetaKey]
	if !ok {
		return 0, fmt.Errorf("%s in vault %s has no version", name, v.name)
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

func (v *S3Vault) GetMetadata(hostID string, name string, w io.Writer) error {
	out, err := v.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.key(hostID, name)),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%q not found for host %s in vault %s", name, hostID, v.name)
		}
		return fmt.Errorf("downloading %s from vault %s: %w", name, v.name, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	return nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (v *S3Vault) ValidateSetup() error {
	_, err := v.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(v.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

var _ ff.Vault = (*S3Vault)(nil)
