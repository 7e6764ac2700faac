package vault

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"otodo-go/internal/config"
	"otodo-go/internal/otodo"
)

// S3Vault stores snapshots in an S3 bucket, one object per client:
//
//	<prefix>/snapshots/<clientID>.db
//	<prefix>/snapshots/<clientID>.version
type S3Vault struct {
	name     string
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Vault creates an S3-backed vault from the vault config. Credentials
// come from the config when set, otherwise from the default AWS chain
// (environment, shared config, instance role).
func NewS3Vault(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	prefix := strings.Trim(cfg.S3Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Vault{
		name:     cfg.Name,
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.S3Bucket,
		prefix:   prefix,
	}, nil
}

func (v *S3Vault) snapshotKey(clientID string) string {
	return v.prefix + "snapshots/" + clientID + ".db"
}

func (v *S3Vault) versionKey(clientID string) string {
	return v.prefix + "snapshots/" + clientID + ".version"
}

// PutSnapshot uploads a snapshot for a client, replacing any previous one.
func (v *S3Vault) PutSnapshot(clientID string, r io.Reader, size int64, version int64) error {
	ctx := context.Background()
	key := v.snapshotKey(clientID)
	_, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(v.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", v.bucket, key, err)
	}

	versionKey := v.versionKey(clientID)
	_, err = v.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(versionKey),
		Body:   strings.NewReader(strconv.FormatInt(version, 10)),
	})
	if err != nil {
		return fmt.Errorf("failed to write s3://%s/%s: %w", v.bucket, versionKey, err)
	}
	return nil
}

// GetSnapshot downloads the stored snapshot for a client.
func (v *S3Vault) GetSnapshot(clientID string, w io.Writer) error {
	key := v.snapshotKey(clientID)
	out, err := v.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("no snapshot for client: %s", clientID)
		}
		return fmt.Errorf("failed to read s3://%s/%s: %w", v.bucket, key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("failed to read body of s3://%s/%s: %w", v.bucket, key, err)
	}
	return nil
}

// SnapshotVersion returns the stored version, or 0 if none.
func (v *S3Vault) SnapshotVersion(clientID string) (int64, error) {
	key := v.versionKey(clientID)
	out, err := v.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read s3://%s/%s: %w", v.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read body of s3://%s/%s: %w", v.bucket, key, err)
	}
	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies the bucket is reachable with the configured
// credentials.
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
	// HeadObject and GetObject report missing keys differently across
	// backends, so match on the error text.
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") ||
		strings.Contains(msg, "NotFound") ||
		strings.Contains(msg, "404")
}

// Compile-time check that S3Vault implements otodo.Vault.
var _ otodo.Vault = (*S3Vault)(nil)
