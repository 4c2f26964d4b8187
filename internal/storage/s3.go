package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yt110010111/market-analysis-LLM/internal/config"
)

const (
	defaultPrefix = "reports"
	linkExpiry    = 15 * time.Minute
)

func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

// S3 stores each job as <prefix>/<id>.json and, once finished, the report
// markdown next to it as <prefix>/<id>.md.
type S3 struct {
	client         *s3.Client
	bucket         string
	prefix         string
	publicEndpoint string
}

var _ Archive = (*S3)(nil)

type NewS3Params struct {
	Client *s3.Client
	Bucket string
	Prefix string
	// PublicEndpoint, when set, is the host used for presigned report links.
	PublicEndpoint string
}

func NewS3(p NewS3Params) *S3 {
	prefix := strings.Trim(p.Prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &S3{client: p.Client, bucket: p.Bucket, prefix: prefix, publicEndpoint: p.PublicEndpoint}
}

func (a *S3) jobKey(id string) string    { return path.Join(a.prefix, id+".json") }
func (a *S3) reportKey(id string) string { return path.Join(a.prefix, id+".md") }

func (a *S3) Put(ctx context.Context, job Job) error {
	if job.ID == "" {
		return errors.New("job id is empty")
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := a.put(ctx, a.jobKey(job.ID), body, "application/json"); err != nil {
		return err
	}
	if job.Result != nil && job.Result.Report != "" {
		return a.put(ctx, a.reportKey(job.ID), []byte(job.Result.Report), "text/markdown; charset=utf-8")
	}
	return nil
}

func (a *S3) put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}
	return nil
}

func (a *S3) Get(ctx context.Context, id string) (Job, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.jobKey(id)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return Job{}, ErrNotFound
		}
		return Job{}, fmt.Errorf("failed to get job from S3: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return Job{}, fmt.Errorf("failed to read job: %w", err)
	}
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return Job{}, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return job, nil
}

// List returns the ids of all archived jobs.
func (a *S3) List(ctx context.Context) ([]string, error) {
	var ids []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(a.prefix + "/"),
	}
	for {
		out, err := a.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects with prefix %s: %w", a.prefix, err)
		}
		for _, obj := range out.Contents {
			if obj.Key == nil || !strings.HasSuffix(*obj.Key, ".json") {
				continue
			}
			ids = append(ids, strings.TrimSuffix(path.Base(*obj.Key), ".json"))
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return ids, nil
}

// Link presigns a download url for the markdown report of job id.
func (a *S3) Link(ctx context.Context, id string) (string, error) {
	client := a.client
	prefix := ""
	if a.publicEndpoint != "" {
		publicURL, err := url.Parse(a.publicEndpoint)
		if err != nil || publicURL.Scheme == "" || publicURL.Host == "" {
			return "", fmt.Errorf("invalid public endpoint: %s", a.publicEndpoint)
		}
		prefix = strings.TrimSuffix(publicURL.Path, "/")

		// presign against the public host so the signature matches the Host
		// header the browser sends
		opts := a.client.Options()
		client = s3.NewFromConfig(
			aws.Config{Region: opts.Region, Credentials: opts.Credentials, HTTPClient: opts.HTTPClient},
			func(o *s3.Options) {
				o.BaseEndpoint = aws.String(publicURL.Scheme + "://" + publicURL.Host)
				o.UsePathStyle = true
			},
		)
	}

	out, err := s3.NewPresignClient(client).PresignGetObject(ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(a.reportKey(id)),
		},
		s3.WithPresignExpires(linkExpiry),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate report link: %w", err)
	}
	if prefix == "" {
		return out.URL, nil
	}

	signed, err := url.Parse(out.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse presigned url: %w", err)
	}
	signed.Path = prefix + signed.Path
	return signed.String(), nil
}
