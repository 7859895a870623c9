package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store persists stage records as objects under a bucket prefix.
// S3 object replacement is atomic, which satisfies the commit contract
// without a temp-and-rename dance.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	ctx    context.Context
}

// NewS3Store creates an S3-backed store.
func NewS3Store(ctx context.Context, client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix, ctx: ctx}
}

func (s *S3Store) key(stage string) string {
	return path.Join(s.prefix, stage+".json")
}

// Load reads the record object for a stage. A missing key yields an
// empty record.
func (s *S3Store) Load(stage string) (*Record, error) {
	out, err := s.client.GetObject(s.ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(stage)),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return NewRecord(), nil
		}
		return nil, &StoreError{Stage: stage, Op: "load", Err: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &StoreError{Stage: stage, Op: "load", Err: err}
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, &StoreError{Stage: stage, Op: "load", Err: err}
	}
	return rec, nil
}

// Commit replaces the record object for a stage.
func (s *S3Store) Commit(stage string, record *Record) error {
	sortResources(record.Resources)
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return &StoreError{Stage: stage, Op: "commit", Err: err}
	}
	_, err = s.client.PutObject(s.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(stage)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return &StoreError{Stage: stage, Op: "commit", Err: err}
	}
	return nil
}
