package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	cfg "postpilot/configs"
)

// MediaService turns post media references into stable HTTP URLs the
// platform can fetch. The container protocol does not accept inline
// data, so anything that is not already an HTTP URL gets uploaded to R2
// first.
type MediaService interface {
	EnsurePublicURL(ctx context.Context, mediaRef string) (string, error)
}

type mediaService struct {
	config cfg.Config
}

func NewMediaService(config cfg.Config) MediaService {
	return &mediaService{config: config}
}

var allowedMediaTypes = map[string]struct{}{
	"mp4": {}, "mov": {}, "jpeg": {}, "png": {}, "jpg": {}, "gif": {}, "webp": {},
}

func (m *mediaService) EnsurePublicURL(ctx context.Context, mediaRef string) (string, error) {
	if mediaRef == "" {
		return "", &ValidationError{Reason: "media reference is empty"}
	}
	if strings.HasPrefix(mediaRef, "http://") || strings.HasPrefix(mediaRef, "https://") {
		return mediaRef, nil
	}
	if strings.HasPrefix(mediaRef, "data:") {
		return m.uploadDataURL(ctx, mediaRef)
	}
	return "", &ValidationError{Reason: "media reference must be an HTTP URL or a data URL"}
}

func (m *mediaService) uploadDataURL(ctx context.Context, dataURL string) (string, error) {
	comma := strings.Index(dataURL, ",")
	if comma < 0 || !strings.Contains(dataURL[:comma], ";base64") {
		return "", &ValidationError{Reason: "malformed data URL"}
	}

	fileBytes, err := base64.StdEncoding.DecodeString(dataURL[comma+1:])
	if err != nil {
		return "", &ValidationError{Reason: "data URL payload is not valid base64"}
	}

	fileType, err := filetype.Match(fileBytes)
	if err != nil || fileType == types.Unknown {
		return "", &ValidationError{Reason: "unsupported file type"}
	}
	if _, ok := allowedMediaTypes[fileType.Extension]; !ok {
		return "", &ValidationError{Reason: fmt.Sprintf("file type %s is not allowed", fileType.Extension)}
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s.%s", id, fileType.Extension)

	if err := m.uploadToR2(ctx, key, fileBytes, fileType.MIME.Value); err != nil {
		return "", fmt.Errorf("error uploading media: %w", err)
	}

	return fmt.Sprintf("%s/%s", strings.TrimRight(m.config.R2.PublicURL, "/"), key), nil
}

func (m *mediaService) r2Client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(m.config.R2.AccessKey, m.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", m.config.R2.AccountID))
	}), nil
}

func (m *mediaService) uploadToR2(ctx context.Context, key string, file []byte, contentType string) error {
	client, err := m.r2Client(ctx)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(m.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(contentType),
	}

	if _, err := client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}
