package tier

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// NewS3Client loads the default AWS credential chain scoped to region
// and returns a client ready for NewS3Blob. Region resolution and
// credential discovery are delegated entirely to aws-sdk-go-v2/config,
// the same library torua's neighbor pack repos (Ezkerrox-bsc) use for
// their own AWS wiring.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}

// NewS3ClientWithStaticCredentials bypasses the default credential chain
// in favor of an explicit access/secret key pair, for pointing a cache
// node at a local S3-compatible endpoint (e.g. during integration
// testing) where the environment's ambient credentials should not apply.
func NewS3ClientWithStaticCredentials(ctx context.Context, region, accessKeyID, secretAccessKey string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}

// S3Blob is the default Blob implementation, backed by
// aws-sdk-go-v2/service/s3 per SPEC_FULL.md's domain-stack wiring — the
// pack contains no other object-store SDK, and this is the only
// S3-shaped dependency across the example pack, so it gets the default
// slot rather than a hand-rolled HTTP client against the S3 REST API.
type S3Blob struct {
	client *s3.Client
	bucket string
}

// NewS3Blob wraps an already-configured s3.Client for bucket.
func NewS3Blob(client *s3.Client, bucket string) *S3Blob {
	return &S3Blob{client: client, bucket: bucket}
}

// Get fetches storageKey from the bucket, returning ErrNotFound if the
// object does not exist.
func (b *S3Blob) Get(ctx context.Context, storageKey string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// Put uploads value under storageKey.
func (b *S3Blob) Put(ctx context.Context, storageKey string, value []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(storageKey),
		Body:   bytes.NewReader(value),
	})
	return err
}

// Delete removes storageKey. S3's DeleteObject does not error on a
// missing key, so this is idempotent for free.
func (b *S3Blob) Delete(ctx context.Context, storageKey string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(storageKey),
	})
	return err
}

// Stats is unavailable for an S3 bucket without a full listing, which
// would be prohibitively expensive to run on every stats request; this
// tier reports only its name.
func (b *S3Blob) Stats() Stats {
	return Stats{Name: "blob"}
}

// Close is a no-op: the s3.Client owns no resources this type must
// release.
func (b *S3Blob) Close() error { return nil }

// ProbeReachable issues a HeadBucket call to confirm the configured
// bucket is reachable and accessible before the node starts serving,
// per spec §6's "cannot reach object store during startup probe" fatal
// condition. NewS3Client alone only resolves credentials/region; it
// never talks to AWS, so a misconfigured or unreachable bucket would
// otherwise surface later as a StoreError on the first Put instead of
// failing startup.
func ProbeReachable(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	return err
}
