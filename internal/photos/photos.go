// Package photos uploads inspection photos to object storage.
package photos

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chmdznr/fieldsync/internal/drafts"
	"github.com/chmdznr/fieldsync/pkg/models"
	"github.com/chmdznr/fieldsync/pkg/utils"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// DefaultBucket is where inspection photos are stored.
const DefaultBucket = "inspection-photos"

// ErrObjectExists is returned instead of overwriting an existing photo.
var ErrObjectExists = errors.New("photo already exists")

const maxKeyAttempts = 10

// ObjectStore is the subset of *minio.Client the uploader needs.
type ObjectStore interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// StorageConfig holds the object storage connection settings
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool
}

// NewMinioClient connects to the object storage described by cfg
func NewMinioClient(cfg StorageConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.Secure,
		Transport:    tr,
		Region:       region,
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}
	return client, nil
}

// Uploader stores photos under <formId>/<questionId>/<timestamp>.<ext>
type Uploader struct {
	store  ObjectStore
	bucket string
	logger *zap.Logger
	now    func() time.Time
}

// NewUploader creates an uploader writing to bucket (DefaultBucket when empty)
func NewUploader(store ObjectStore, bucket string, logger *zap.Logger) *Uploader {
	if bucket == "" {
		bucket = DefaultBucket
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{store: store, bucket: bucket, logger: logger, now: time.Now}
}

// Upload sends the photo at localPath and returns its reference.
// coordinates may be empty.
func (u *Uploader) Upload(ctx context.Context, formID, questionID, localPath, coordinates string) (models.Photo, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return models.Photo{}, fmt.Errorf("failed to open photo %s: %w", localPath, err)
	}
	if info.IsDir() {
		return models.Photo{}, fmt.Errorf("photo %s is a directory", localPath)
	}

	ext := photoExt(localPath)
	key, err := u.freeKey(ctx, formID, questionID, ext)
	if err != nil {
		return models.Photo{}, err
	}

	metadata := map[string]string{
		"form-id":     formID,
		"question-id": questionID,
	}
	coordinates = strings.TrimSpace(coordinates)
	if coordinates != "" {
		metadata["coordinates"] = coordinates
	}
	objInfo, err := u.store.FPutObject(ctx, u.bucket, key, localPath, minio.PutObjectOptions{
		ContentType:  contentType(ext),
		UserMetadata: metadata,
	})
	if err != nil {
		if minioErr, ok := err.(minio.ErrorResponse); ok {
			u.logger.Error("photo upload rejected",
				zap.String("code", minioErr.Code),
				zap.String("message", minioErr.Message),
				zap.String("bucket", minioErr.BucketName),
				zap.String("key", minioErr.Key))
		}
		return models.Photo{}, fmt.Errorf("failed to upload photo %s: %w", localPath, err)
	}
	if objInfo.Size != info.Size() {
		return models.Photo{}, fmt.Errorf("uploaded photo size mismatch for %s: expected %d bytes, got %d", localPath, info.Size(), objInfo.Size)
	}

	u.logger.Info("photo uploaded",
		zap.String("key", key),
		zap.String("size", utils.FormatSize(info.Size())))

	photo := models.Photo{Path: key}
	if coordinates != "" {
		photo.Coordinates = &coordinates
	}
	return photo, nil
}

// freeKey finds an unused object key for a photo taken now. Photos taken
// in the same millisecond get a -1, -2, ... suffix.
func (u *Uploader) freeKey(ctx context.Context, formID, questionID, ext string) (string, error) {
	stamp := drafts.ISOTimestamp(u.now())
	for n := 0; n < maxKeyAttempts; n++ {
		name := stamp + "." + ext
		if n > 0 {
			name = stamp + "-" + strconv.Itoa(n) + "." + ext
		}
		key := objectKey(formID, questionID, name)
		if key == "" || strings.Count(key, "/") != 2 {
			return "", fmt.Errorf("invalid form or question id for photo: %q/%q", formID, questionID)
		}

		_, err := u.store.StatObject(ctx, u.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			continue
		}
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return "", fmt.Errorf("failed to check %s/%s: %w", u.bucket, key, err)
		}
		return key, nil
	}
	return "", fmt.Errorf("%w: %s/%s/%s/%s.%s", ErrObjectExists, u.bucket, formID, questionID, stamp, ext)
}

func photoExt(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return "jpg"
	}
	return ext
}

func contentType(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "image/" + ext
	}
}

// objectKey joins path segments into a clean object key: forward slashes
// only, no empty segments, no invisible characters.
func objectKey(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = strings.ReplaceAll(segment, "\\", "/")
		for _, part := range strings.Split(segment, "/") {
			part = strings.Map(func(r rune) rune {
				switch r {
				case '\u3000': // full-width space
					return ' '
				case '\u200B', '\uFEFF': // zero-width space and BOM
					return -1
				default:
					return r
				}
			}, part)
			part = strings.TrimSpace(part)
			if part == "" || part == "." || part == ".." {
				continue
			}
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "/")
}
