package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options beschreibt einen S3-kompatiblen Endpunkt.
type S3Options struct {
	URL    string
	Region string
	Key    string
	Secret string
}

// NewS3Client erstellt einen S3-Client für einen S3-kompatiblen Endpunkt.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               opts.URL,
				SigningRegion:     opts.Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.Key, opts.Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

// ObjectPutter ist der Teil des S3-Clients, den das Archiv braucht.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PDFArchive legt hochgeladene Papers in einem Bucket ab.
type PDFArchive struct {
	client  ObjectPutter
	baseURL string
	bucket  string
}

func NewPDFArchive(client ObjectPutter, baseURL, bucket string) *PDFArchive {
	return &PDFArchive{client: client, baseURL: strings.TrimRight(baseURL, "/"), bucket: bucket}
}

// UploadPaper lädt die Rohdaten unter papers/<id>.pdf hoch und gibt den Link zurück.
func (a *PDFArchive) UploadPaper(ctx context.Context, paperID string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/pdf"
	}
	key := fmt.Sprintf("papers/%s.pdf", paperID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", a.baseURL, a.bucket, key), nil
}
