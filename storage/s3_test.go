package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestPDFArchiveUploadPaper(t *testing.T) {
	putter := &fakePutter{}
	archive := NewPDFArchive(putter, "https://s3.example.test/", "orbit")

	link, err := archive.UploadPaper(context.Background(), "abc", []byte("%PDF-1.7"), "")
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if link != "https://s3.example.test/orbit/papers/abc.pdf" {
		t.Fatalf("unexpected link %q", link)
	}
	if aws.ToString(putter.input.Key) != "papers/abc.pdf" || aws.ToString(putter.input.Bucket) != "orbit" {
		t.Fatalf("unexpected target %s/%s", aws.ToString(putter.input.Bucket), aws.ToString(putter.input.Key))
	}
	if aws.ToString(putter.input.ContentType) != "application/pdf" {
		t.Fatalf("content type should default to application/pdf, got %q", aws.ToString(putter.input.ContentType))
	}
	if string(putter.body) != "%PDF-1.7" {
		t.Fatalf("unexpected body %q", putter.body)
	}
}

func TestPDFArchiveUploadError(t *testing.T) {
	archive := NewPDFArchive(&fakePutter{err: errors.New("access denied")}, "https://s3.example.test", "orbit")
	if _, err := archive.UploadPaper(context.Background(), "abc", []byte("x"), "application/pdf"); err == nil {
		t.Fatal("expected the put error to surface")
	}
}
