package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config describes an S3 compatible bucket.
type Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	Prefix        string
	PublicBaseURL string
}

// Uploader stores submission files in an S3 bucket.
type Uploader struct {
	client  *s3.S3
	cfg     Config
	logger  zerolog.Logger
	now     func() time.Time
	newUUID func() string
}

// New builds an uploader using static credentials and path-style addressing.
func New(cfg Config, logger zerolog.Logger) (*Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket must be provided")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		DisableSSL:       aws.Bool(!cfg.UseSSL),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 session: %w", err)
	}

	return &Uploader{
		client:  s3.New(sess),
		cfg:     cfg,
		logger:  logger.With().Str("component", "s3store").Logger(),
		now:     time.Now,
		newUUID: uuid.NewString,
	}, nil
}

// Upload writes the file under a dated key and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}

	key := u.objectKey(name)
	_, err = u.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(mimetype.Detect(content).String()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}

	u.logger.Info().Str("key", key).Int("bytes", len(content)).Msg("submission file uploaded")

	return u.objectURL(key), nil
}

func (u *Uploader) objectKey(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "submission"
	}
	return path.Join(strings.Trim(u.cfg.Prefix, "/"), u.now().UTC().Format("2006/01/02"), u.newUUID()+"-"+base)
}

func (u *Uploader) objectURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if base := strings.TrimRight(u.cfg.PublicBaseURL, "/"); base != "" {
		return base + "/" + escaped
	}

	endpoint := strings.TrimRight(u.cfg.Endpoint, "/")
	if endpoint == "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.cfg.Bucket, u.cfg.Region, escaped)
	}
	if !strings.Contains(endpoint, "://") {
		scheme := "http"
		if u.cfg.UseSSL {
			scheme = "https"
		}
		endpoint = scheme + "://" + endpoint
	}
	return endpoint + "/" + u.cfg.Bucket + "/" + escaped
}
