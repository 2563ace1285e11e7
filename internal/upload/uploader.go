package upload

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	apierrors "github.com/airelay/qwen-bridge/internal/errors"
	"github.com/airelay/qwen-bridge/internal/logger"
	"github.com/airelay/qwen-bridge/internal/monitoring"
	"github.com/airelay/qwen-bridge/internal/reliability"
	"github.com/airelay/qwen-bridge/internal/types"
)

// CredentialClient acquires short-lived write credentials from the
// backend for a single asset upload.
type CredentialClient interface {
	AcquireUploadCredential(ctx context.Context, filename string, size int64, kind, token string) (*types.BackendCredentialResponse, error)
}

// putObjectFunc writes bytes to object storage with a temporary credential
type putObjectFunc func(cred *types.BackendCredentialResponse, data []byte, mimeType string) error

// Uploader pushes client-supplied inline assets to object storage,
// caching results by content fingerprint.
type Uploader struct {
	creds         CredentialClient
	cache         *Cache
	retryConfig   reliability.RetryConfig
	maxAssetBytes int64
	putObject     putObjectFunc
}

// Option customizes an Uploader
type Option func(*Uploader)

// WithRetryConfig overrides the retry policy for both network calls
func WithRetryConfig(config reliability.RetryConfig) Option {
	return func(u *Uploader) {
		u.retryConfig = config
	}
}

// WithMaxAssetBytes overrides the per-asset size bound
func WithMaxAssetBytes(limit int64) Option {
	return func(u *Uploader) {
		u.maxAssetBytes = limit
	}
}

// withPutObject replaces the object-storage write; used by tests
func withPutObject(put putObjectFunc) Option {
	return func(u *Uploader) {
		u.putObject = put
	}
}

// NewUploader creates an uploader backed by the given credential
// client and content cache.
func NewUploader(creds CredentialClient, cache *Cache, opts ...Option) *Uploader {
	u := &Uploader{
		creds:         creds,
		cache:         cache,
		retryConfig:   reliability.DefaultRetryConfig(),
		maxAssetBytes: 20 * 1024 * 1024,
		putObject:     ossPutObject,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UploadAndCache fingerprints the bytes, returns the cached URL on a
// hit, and otherwise acquires a credential, writes the asset, caches
// the result, and returns the public URL.
func (u *Uploader) UploadAndCache(ctx context.Context, data []byte, filename, mimeType, token string) (string, error) {
	ctx = logger.WithComponent(ctx, "uploader")

	if len(data) == 0 {
		return "", apierrors.NewValidationError("asset bytes must not be empty")
	}

	fingerprint := Fingerprint(data)
	if url, ok := u.cache.Lookup(fingerprint); ok {
		monitoring.Get().RecordCacheLookup(true)
		logger.Debug(ctx, "Asset served from content cache",
			"fingerprint", fingerprint,
			"public_url", url)
		return url, nil
	}
	monitoring.Get().RecordCacheLookup(false)

	cred, err := u.requestWriteCredential(ctx, filename, int64(len(data)), assetKind(mimeType), token)
	if err != nil {
		monitoring.Get().RecordUpload(false)
		return "", err
	}

	if err := u.putAsset(ctx, data, cred, mimeType); err != nil {
		monitoring.Get().RecordUpload(false)
		return "", err
	}
	monitoring.Get().RecordUpload(true)

	u.cache.Insert(fingerprint, cred.FileURL)
	logger.Info(ctx, "Asset uploaded and cached",
		"fingerprint", fingerprint,
		"object_path", cred.FilePath,
		"public_url", cred.FileURL,
		"size_bytes", len(data))
	return cred.FileURL, nil
}

// requestWriteCredential validates inputs and acquires the short-lived
// credential, retrying transient failures. Authorization failures are
// surfaced immediately.
func (u *Uploader) requestWriteCredential(ctx context.Context, filename string, size int64, kind, token string) (*types.BackendCredentialResponse, error) {
	ctx = logger.WithStage(ctx, "credential_request")

	if filename == "" {
		return nil, apierrors.NewValidationError("upload filename must not be empty")
	}
	if token == "" {
		return nil, apierrors.NewValidationError("upload auth token must not be empty")
	}
	if size > u.maxAssetBytes {
		return nil, apierrors.NewValidationError(
			fmt.Sprintf("asset size %d exceeds limit of %d bytes", size, u.maxAssetBytes))
	}

	var cred *types.BackendCredentialResponse
	err := reliability.RetryWithConfig(ctx, u.retryConfig, func() error {
		acquired, acquireErr := u.creds.AcquireUploadCredential(ctx, filename, size, kind, token)
		if acquireErr != nil {
			if ae, ok := acquireErr.(*apierrors.APIError); ok && ae.Type == apierrors.ErrorTypeUpstreamAuth {
				return reliability.Permanent(acquireErr)
			}
			return acquireErr
		}
		cred = acquired
		return nil
	})
	if err != nil {
		logger.Error(ctx, "Upload credential acquisition failed", err,
			"filename", filename,
			"size_bytes", size)
		return nil, err
	}
	return cred, nil
}

// putAsset writes the bytes with the supplied credential. The
// credential is assumed valid for the retry window and is not
// re-fetched between attempts.
func (u *Uploader) putAsset(ctx context.Context, data []byte, cred *types.BackendCredentialResponse, mimeType string) error {
	ctx = logger.WithStage(ctx, "object_put")

	err := reliability.RetryWithConfig(ctx, u.retryConfig, func() error {
		return u.putObject(cred, data, mimeType)
	})
	if err != nil {
		logger.Error(ctx, "Object storage write failed", err,
			"bucket", cred.BucketName,
			"object_path", cred.FilePath)
		return apierrors.NewUploadError(fmt.Sprintf("object storage write failed: %v", err))
	}
	return nil
}

// ossPutObject writes the asset using the temporary STS credential
func ossPutObject(cred *types.BackendCredentialResponse, data []byte, mimeType string) error {
	client, err := oss.New(cred.Endpoint, cred.AccessKeyID, cred.AccessKeySecret,
		oss.SecurityToken(cred.SecurityToken))
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}

	bucket, err := client.Bucket(cred.BucketName)
	if err != nil {
		return fmt.Errorf("failed to open bucket %s: %w", cred.BucketName, err)
	}

	options := []oss.Option{}
	if mimeType != "" {
		options = append(options, oss.ContentType(mimeType))
	}
	if err := bucket.PutObject(cred.FilePath, bytes.NewReader(data), options...); err != nil {
		return fmt.Errorf("failed to put object %s: %w", cred.FilePath, err)
	}
	return nil
}

// assetKind maps a mime type to the backend's coarse asset kind hint
func assetKind(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	default:
		return "file"
	}
}

// FilenameForMime produces a filename hint for an inline asset that
// arrived without one, using the mime subtype as extension.
func FilenameForMime(mimeType, id string) string {
	ext := "bin"
	if idx := strings.Index(mimeType, "/"); idx >= 0 && idx+1 < len(mimeType) {
		ext = mimeType[idx+1:]
		if semi := strings.Index(ext, ";"); semi >= 0 {
			ext = ext[:semi]
		}
	}
	return path.Clean(id + "." + ext)
}
