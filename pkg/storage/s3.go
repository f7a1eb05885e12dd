package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archive uses the default AWS credential chain. AWS_ENDPOINT_URL points it at
// S3 compatible stores, hence path-style addressing.
func NewS3Archive(ctx context.Context, bucket, prefix string) (*S3Archive, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
		UsePathStyle: true,
	})
	return &S3Archive{client: client, bucket: bucket, prefix: prefix}, nil
}

func (a *S3Archive) Put(ctx context.Context, key, localPath string) error {
	key = objectName(a.prefix, key)
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(localPath)),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	logger.Log.WithFields(logrus.Fields{
		"bucket": a.bucket,
		"key":    key,
	}).Debug("Artifact archived to S3")
	return nil
}

func (a *S3Archive) Close() error { return nil }
