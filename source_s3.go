package corrstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang/snappy"
)

// S3SourceConfig configures reading the record stream from S3 or an
// S3-compatible service (MinIO, etc.).
type S3SourceConfig struct {
	Bucket   string `yaml:"bucket"`
	Key      string `yaml:"key"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // for S3-compatible services
	// AccessKeyID for authentication. Prefer IAM roles, instance profiles,
	// or environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY)
	// over setting these directly. DO NOT commit credentials to source
	// control.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`

	// MaxRetries is the max retry attempts per read (default: 3).
	MaxRetries int `yaml:"max_retries"`
}

// S3Source reads the upstream NDJSON stream from an object that the
// analysis engine appends to (or periodically rewrites). Range reads keep
// each poll cycle to the newly appended bytes; keys ending in ".snappy" are
// fetched whole and decompressed, with the offset applied to the
// decompressed bytes.
type S3Source struct {
	client  *s3.Client
	config  S3SourceConfig
	retryer *Retryer
}

// NewS3Source creates an S3-backed record source.
func NewS3Source(cfg S3SourceConfig) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Key == "" {
		return nil, errors.New("key is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return &S3Source{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		config: cfg,
		retryer: NewRetryer(RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			RetryIf:     IsRetryable,
		}),
	}, nil
}

func (s *S3Source) Read(ctx context.Context, offset int64) ([]byte, int64, error) {
	if strings.HasSuffix(s.config.Key, ".snappy") {
		return s.readCompressed(ctx, offset)
	}

	var data []byte
	err := s.retryer.Do(ctx, func() error {
		input := &s3.GetObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(s.config.Key),
			Range:  aws.String(fmt.Sprintf("bytes=%d-", offset)),
		}
		resp, err := s.client.GetObject(ctx, input)
		if err != nil {
			// An unsatisfiable range means nothing was appended since the
			// last cycle.
			if strings.Contains(err.Error(), "InvalidRange") || strings.Contains(err.Error(), "416") {
				data = nil
				return nil
			}
			return err
		}
		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, offset, newSourceError("cannot read S3 record source", s.config.Bucket+"/"+s.config.Key, err)
	}
	return data, offset + int64(len(data)), nil
}

func (s *S3Source) readCompressed(ctx context.Context, offset int64) ([]byte, int64, error) {
	var raw []byte
	err := s.retryer.Do(ctx, func() error {
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(s.config.Key),
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		raw, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, offset, newSourceError("cannot read S3 record segment", s.config.Bucket+"/"+s.config.Key, err)
	}

	data, err := snappy.Decode(nil, raw)
	if err != nil {
		return nil, offset, newSourceError("cannot decompress S3 record segment", s.config.Key, err)
	}
	if int64(len(data)) <= offset {
		return nil, offset, nil
	}
	return data[offset:], int64(len(data)), nil
}

func (s *S3Source) Close() error { return nil }
