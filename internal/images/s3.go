package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// s3API is the part of the S3 client the backend uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ s3API = (*s3.Client)(nil)

type S3BackendParams struct {
	Bucket          string
	Region          string
	Endpoint        string
	PublicBaseURL   string
	UsePathStyle    bool
	AccessKeyID     string
	SecretAccessKey string
}

type S3Backend struct {
	client        s3API
	bucket        string
	publicBaseURL string
}

func NewS3Backend(ctx context.Context, params S3BackendParams) (*S3Backend, error) {
	if params.Bucket == "" {
		return nil, errors.New("s3 bucket cannot be empty")
	}

	region := params.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		// must stay buildable while loading, so a custom CA bundle can be applied to it
		awsconfig.WithHTTPClient(awshttp.NewBuildableClient()),
	}
	if params.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(params.AccessKeyID, params.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	cfg.HTTPClient = tracedHTTPClient(cfg.HTTPClient)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if params.Endpoint != "" {
			o.BaseEndpoint = aws.String(params.Endpoint)
		}
		o.UsePathStyle = params.UsePathStyle
	})

	publicBaseURL := params.PublicBaseURL
	if publicBaseURL == "" {
		publicBaseURL = defaultBucketURL(params.Bucket, region, params.Endpoint)
	}

	return newS3Backend(client, params.Bucket, publicBaseURL), nil
}

// tracedHTTPClient wraps the transport the SDK resolved (TLS settings included) with otelhttp.
func tracedHTTPClient(client aws.HTTPClient) aws.HTTPClient {
	buildable, ok := client.(*awshttp.BuildableClient)
	if !ok {
		return client
	}
	return &http.Client{
		Timeout:   buildable.GetTimeout(),
		Transport: otelhttp.NewTransport(buildable.GetTransport()),
		// the SDK expects redirects to be handed back, not followed
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func newS3Backend(client s3API, bucket, publicBaseURL string) *S3Backend {
	return &S3Backend{
		client:        client,
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
	}
}

func defaultBucketURL(bucket, region, endpoint string) string {
	if endpoint != "" {
		return joinURL(endpoint, bucket)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
}

func (b *S3Backend) URL(filename string) string {
	return joinURL(b.publicBaseURL, filename)
}

func (b *S3Backend) Put(ctx context.Context, filename, contentType string, data []byte) error {
	if err := checkFilename(filename); err != nil {
		return err
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(filename),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (b *S3Backend) List(ctx context.Context) ([]Image, error) {
	var images []Image
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// keys with a prefix are not ours
			if strings.Contains(key, "/") || !hasImageExtension(key) {
				continue
			}
			images = append(images, Image{
				Filename:  key,
				URL:       b.URL(key),
				Size:      aws.ToInt64(obj.Size),
				CreatedAt: aws.ToTime(obj.LastModified).UTC(),
			})
		}
	}
	return images, nil
}

// Delete checks the object exists first, since S3 reports success for missing keys.
func (b *S3Backend) Delete(ctx context.Context, filename string) error {
	if err := checkFilename(filename); err != nil {
		return err
	}

	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(filename),
	})
	if err != nil {
		if isS3NotFound(err) {
			return ErrImageNotFound
		}
		return fmt.Errorf("s3 head object: %w", err)
	}

	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(filename),
	}); err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
