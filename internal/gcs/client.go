package gcs

import (
	"context"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/juju/errors"

	"github.com/arencloud/sqlexport/internal/models"
)

// Client looks up exported objects through the GCS XML API, which speaks the
// S3 protocol when authenticated with HMAC keys.
type Client struct{ s3 *s3.Client }

type Config struct {
	Endpoint  string
	AccessKey string
	Secret    string
}

func normalizeEndpoint(endpoint string) string {
	if endpoint == "" {
		return "https://storage.googleapis.com"
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		if u, err := url.Parse(endpoint); err == nil {
			return u.Scheme + "://" + u.Host
		}
	}
	return "https://" + endpoint
}

func New(cfg Config) (*Client, error) {
	if cfg.AccessKey == "" || cfg.Secret == "" {
		return nil, errors.NotValidf("missing HMAC credentials")
	}
	client := s3.New(s3.Options{
		Region:       "auto",
		BaseEndpoint: aws.String(normalizeEndpoint(cfg.Endpoint)),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.Secret, ""),
		// GCS only resolves buckets from the path.
		UsePathStyle: true,
	})
	return &Client{s3: client}, nil
}

// ParseURI splits gs://bucket/key.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", errors.NotValidf("uri %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", errors.NotValidf("uri %q", uri)
	}
	return bucket, key, nil
}

// Stat returns size and etag of the object at uri.
func (c *Client) Stat(ctx context.Context, uri string) (*models.Artifact, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, errors.Trace(err)
	}
	out, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, errors.Annotatef(err, "stat %s", uri)
	}
	return &models.Artifact{
		Bucket: bucket,
		Key:    key,
		Size:   aws.ToInt64(out.ContentLength),
		ETag:   strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}
