// Package storage archives investigation reports, in S3 when a bucket is
// configured and on local disk otherwise.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/membership-admin/internal/config"
)

// Archive stores one JSON document per run and returns where it went.
type Archive interface {
	Save(ctx context.Context, runID string, at time.Time, data interface{}) (string, error)
}

// ReportKey is the object key for a run: <prefix>/YYYY/MM/DD/<run-id>.json.
func ReportKey(prefix, runID string, at time.Time) string {
	return path.Join(strings.Trim(prefix, "/"), at.UTC().Format("2006/01/02"), runID+".json")
}

// S3Archive writes reports to an S3 bucket.
type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archive builds the S3 client from cfg. Static keys win over a shared
// profile; with neither, the default credential chain is used.
func NewS3Archive(ctx context.Context, cfg config.ReportsConfig, optFns ...func(*s3.Options)) (*S3Archive, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	switch {
	case cfg.AccessKey != "" && cfg.SecretKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	case cfg.GetAWSProfile() != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.GetAWSProfile()))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &S3Archive{
		client: s3.NewFromConfig(awsCfg, optFns...),
		bucket: cfg.S3Bucket,
		prefix: cfg.S3Prefix,
	}, nil
}

// Save uploads data as indented JSON and returns its s3:// URI.
func (a *S3Archive) Save(ctx context.Context, runID string, at time.Time, data interface{}) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}

	key := ReportKey(a.prefix, runID, at)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(jsonData),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("putting object to S3 bucket %s: %w", a.bucket, err)
	}
	return "s3://" + a.bucket + "/" + key, nil
}

// Load reads a previously archived report into target.
func (a *S3Archive) Load(ctx context.Context, key string, target interface{}) error {
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("getting object from S3 bucket %s: %w", a.bucket, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("reading S3 object body: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshaling S3 data: %w", err)
	}
	return nil
}

// FileArchive writes reports under a local directory using the same key
// layout as S3Archive.
type FileArchive struct {
	Dir string
}

func (a FileArchive) Save(_ context.Context, runID string, at time.Time, data interface{}) (string, error) {
	p := filepath.Join(a.Dir, filepath.FromSlash(ReportKey("", filepath.Base(runID), at)))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", err
	}

	file, err := os.Create(p)
	if err != nil {
		return "", err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return "", err
	}
	return p, nil
}

var (
	_ Archive = (*S3Archive)(nil)
	_ Archive = FileArchive{}
)
