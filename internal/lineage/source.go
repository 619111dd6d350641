package lineage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Source yields the raw bytes of a lineage batch.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// FileSource reads a batch from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lineage file: %w", err)
	}
	return f, nil
}

func (s FileSource) String() string { return s.Path }

// S3Config holds optional overrides for the S3 client. Empty values fall
// back to the standard AWS configuration chain.
type S3Config struct {
	Region       string `mapstructure:"region" yaml:"region"`
	Profile      string `mapstructure:"profile" yaml:"profile"`
	UsePathStyle bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
}

// objectGetter is the slice of the S3 client used by S3Source.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads a batch object from S3.
type S3Source struct {
	Bucket string
	Key    string
	client objectGetter
}

// NewS3Source builds an S3Source using the default AWS credential chain.
func NewS3Source(ctx context.Context, bucket, key string, cfg S3Config) (*S3Source, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Source{Bucket: bucket, Key: key, client: client}, nil
}

func (s *S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	return out.Body, nil
}

func (s *S3Source) String() string { return "s3://" + s.Bucket + "/" + s.Key }

// OpenSource picks a Source for uri: s3://bucket/key or a filesystem path.
func OpenSource(ctx context.Context, uri string, cfg S3Config) (Source, error) {
	if uri == "" {
		return nil, fmt.Errorf("lineage source is not configured")
	}
	if !strings.HasPrefix(uri, "s3://") {
		return FileSource{Path: strings.TrimPrefix(uri, "file://")}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid lineage uri %q: %w", uri, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, fmt.Errorf("invalid lineage uri %q: expected s3://bucket/key", uri)
	}
	return NewS3Source(ctx, u.Host, key, cfg)
}
