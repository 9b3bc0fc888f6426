package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	appconfig "tnepic-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const uploadExpiry = 5 * time.Minute

var ErrUnsupportedImage = errors.New("unsupported image type")

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// MemoryService issues pre-signed uploads for trip memory images
type MemoryService struct {
	presign  *s3.PresignClient
	bucket   string
	region   string
	endpoint string
}

// NewMemoryService creates a new memory service
func NewMemoryService(ctx context.Context, cfg appconfig.AWSConfig) (*MemoryService, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("aws.s3_bucket is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &MemoryService{
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.S3Bucket,
		region:   cfg.Region,
		endpoint: endpoint,
	}, nil
}

// UploadRequest represents a request to get a pre-signed URL
type UploadRequest struct {
	ContentType string `json:"content_type"`
}

// UploadResponse carries the pre-signed PUT and the URL the image will have
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	ImageURL  string `json:"image_url"`
	ExpiresIn int    `json:"expires_in"`
}

// PresignUpload generates a pre-signed URL for uploading a memory image of a trip
func (s *MemoryService) PresignUpload(ctx context.Context, userID, tripID, contentType string) (*UploadResponse, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, contentType)
	}

	// memories/{user_id}/{trip_id}/{uuid}.{ext}
	key := fmt.Sprintf("memories/%s/%s/%s.%s", userID, tripID, uuid.New().String(), ext)

	request, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = uploadExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	return &UploadResponse{
		UploadURL: request.URL,
		ImageURL:  s.objectURL(key),
		ExpiresIn: int(uploadExpiry.Seconds()),
	}, nil
}

func (s *MemoryService) objectURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
