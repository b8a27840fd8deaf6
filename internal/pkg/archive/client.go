package archive

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayDemo/app/models"
)

// objectPutter is the part of *s3.Client the archiver needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client copies raw webhook payloads to an S3 bucket for audit.
type Client struct {
	s3Client objectPutter
	bucket   string
}

// NewClient creates an S3 archive client
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("webhook archive is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	log.Infof("[Archive] Archiving webhook payloads to bucket: %s", cfg.BucketName)
	return &Client{s3Client: s3Client, bucket: cfg.BucketName}, nil
}

// Archive uploads the raw payload of ev unchanged.
func (c *Client) Archive(ctx context.Context, ev *models.WebhookEvent) error {
	key := ObjectKey(ev.ID, ev.ReceivedAt)
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(ev.RawPayload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(ev.RawPayload))),
		Metadata: map[string]string{
			"record-id":          strconv.FormatUint(uint64(ev.ID), 10),
			"provider-event-id":  ev.ProviderEventID,
			"received-signature": ev.ReceivedSignature,
			"upload-source":      "paydemo-webhooks",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to archive webhook %d: %w", ev.ID, err)
	}
	log.Debugf("[Archive] Stored s3://%s/%s", c.bucket, key)
	return nil
}
