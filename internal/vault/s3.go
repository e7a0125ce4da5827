package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"filmgov/internal/catalog"
	"filmgov/internal/config"
)

// S3Vault stores backups as objects in an S3 (or S3-compatible) bucket:
//
//	<prefix>/<datasetID>/<version>.backup
//
// Versions are zero-padded in object keys so that a lexical listing returns
// them in order.
type S3Vault struct {
	name   string
	bucket string
	prefix string
	client *s3.Client
}

// NewS3Vault builds an S3 client from cfg. Static credentials and a custom
// endpoint are used when configured; otherwise the default AWS chain applies.
func NewS3Vault(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3VaultFromClient(cfg.Name, cfg.S3Bucket, cfg.S3Prefix, client), nil
}

// NewS3VaultFromClient wraps an existing client.
func NewS3VaultFromClient(name, bucket, prefix string, client *s3.Client) *S3Vault {
	return &S3Vault{
		name:   name,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		client: client,
	}
}

// PutBackup uploads a backup. The upload manager switches to multipart for
// large databases.
func (v *S3Vault) PutBackup(ctx context.Context, datasetID string, version int64, r io.Reader, size int64) error {
	key, err := v.objectKey(datasetID, version)
	if err != nil {
		return err
	}

	counter := &countingReader{r: r}
	uploader := manager.NewUploader(v.client)
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
		Body:   counter,
	}); err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}

	if counter.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.n)
	}
	return nil
}

// GetBackup streams a stored backup to w.
func (v *S3Vault) GetBackup(ctx context.Context, datasetID string, version int64, w io.Writer) error {
	key, err := v.objectKey(datasetID, version)
	if err != nil {
		return err
	}

	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("backup %d not found for dataset: %s", version, datasetID)
		}
		return fmt.Errorf("downloading %s: %w", key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	return nil
}

// ListVersions lists the dataset's objects and returns their versions in
// ascending order.
func (v *S3Vault) ListVersions(ctx context.Context, datasetID string) ([]int64, error) {
	dir, err := v.datasetPrefix(datasetID)
	if err != nil {
		return nil, err
	}

	var versions []int64
	p := s3.NewListObjectsV2Paginator(v.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(v.bucket),
		Prefix: aws.String(dir),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", dir, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), dir)
			if version, ok := parseBackupName(name); ok {
				versions = append(versions, version)
			}
		}
	}
	slices.Sort(versions)
	return versions, nil
}

// ValidateSetup checks that the bucket exists and is reachable with the
// configured credentials.
func (v *S3Vault) ValidateSetup(ctx context.Context) error {
	if _, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(v.bucket)}); err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

func (v *S3Vault) datasetPrefix(datasetID string) (string, error) {
	if datasetID == "" || strings.ContainsAny(datasetID, `/\`) || datasetID == "." || datasetID == ".." {
		return "", fmt.Errorf("invalid dataset id: %q", datasetID)
	}
	if v.prefix == "" {
		return datasetID + "/", nil
	}
	return path.Join(v.prefix, datasetID) + "/", nil
}

func (v *S3Vault) objectKey(datasetID string, version int64) (string, error) {
	dir, err := v.datasetPrefix(datasetID)
	if err != nil {
		return "", err
	}
	return dir + objectName(version), nil
}

// objectName pads the version to 20 digits, enough for any positive int64.
func objectName(version int64) string {
	return fmt.Sprintf("%020d%s", version, backupExt)
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

var _ catalog.Vault = (*S3Vault)(nil)
