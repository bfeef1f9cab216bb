package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/config"
	"github.com/nijaru/yt-digest/errors"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps artifacts in an S3 compatible bucket (AWS, Spaces, MinIO).
type S3Store struct {
	client S3API
	bucket string
	prefix string
	logger *logrus.Logger
}

func NewS3Store(ctx context.Context, cfg config.S3Config, logger *logrus.Logger) (*S3Store, error) {
	const op = "S3Store.New"

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Configuration(op, err, "unable to load S3 config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StoreWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func NewS3StoreWithClient(client S3API, bucket, prefix string, logger *logrus.Logger) *S3Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	const op = "S3Store.Put"

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return errors.Internal(op, err, "failed to save artifact to S3")
	}

	s.logger.WithFields(logrus.Fields{
		"bucket": s.bucket,
		"key":    key,
		"bytes":  len(data),
	}).Debug("Artifact stored")
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "S3Store.Get"

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if stderrors.As(err, &noKey) {
			return nil, errors.NotFound(op, err, "artifact not found: "+key)
		}
		return nil, errors.Internal(op, err, "failed to get artifact from S3")
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, errors.Internal(op, err, "failed to read artifact body")
	}
	return data, nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	const op = "S3Store.Exists"

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	var noKey *types.NoSuchKey
	if stderrors.As(err, &notFound) || stderrors.As(err, &noKey) {
		return false, nil
	}
	return false, errors.Internal(op, err, "failed to head artifact")
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	const op = "S3Store.List"

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Internal(op, err, "failed to list artifacts")
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			keys = append(keys, key[len(s.prefix):])
		}
	}

	sort.Strings(keys)
	return keys, nil
}
