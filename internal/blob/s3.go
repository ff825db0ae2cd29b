package blob

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// S3API is the subset of *s3.Client used here.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store reads objects from s3://{bucket}/{prefix}/{path}.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

func NewS3(client S3API, bucket, prefix string) (*S3Store, error) {
	if client == nil {
		return nil, xerrors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, xerrors.New("s3 bucket is required")
	}
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (s *S3Store) key(path string) string {
	if s.prefix == "" {
		return path
	}
	return s.prefix + "/" + path
}

func (s *S3Store) Fetch(ctx context.Context, path string) (*Object, error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	key := s.key(p)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			err = errors.Join(ErrNotFound, err)
		}
		return nil, xerrors.Wrapf(err, "get S3 object s3://%s/%s", s.bucket, key)
	}

	obj := &Object{Body: out.Body, ContentType: DefaultContentType, Size: -1}
	if ct := aws.ToString(out.ContentType); ct != "" {
		obj.ContentType = ct
	}
	if out.ContentLength != nil {
		obj.Size = *out.ContentLength
	}
	return obj, nil
}
