package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/wastewatch-api/internal/dto"
	appErrors "github.com/noah-isme/wastewatch-api/pkg/errors"
	"github.com/noah-isme/wastewatch-api/pkg/storage"
)

// sniffLen matches the prefix mimetype inspects by default.
const sniffLen = 3072

type blobStore interface {
	SaveStream(id string, r io.Reader) (int64, error)
	Open(id string) (*os.File, error)
	Exists(id string) (bool, error)
}

type urlSigner interface {
	Generate(purpose, subject string) (string, time.Time, error)
	Verify(token, purpose string) (string, error)
}

// MediaConfig configures MediaService URL building and content policy.
type MediaConfig struct {
	PublicBaseURL string
	APIPrefix     string
	AllowedMIMEs  []string
}

// MediaService is the object store capability: it hands out upload targets, stores image
// bytes under opaque storage ids and resolves ids to time-limited download URLs.
type MediaService struct {
	store          blobStore
	uploadSigner   urlSigner
	downloadSigner urlSigner
	config         MediaConfig
	metrics        *MetricsService
	logger         *zap.Logger
}

// NewMediaService constructs the media service.
func NewMediaService(store blobStore, uploadSigner, downloadSigner urlSigner, cfg MediaConfig, metrics *MetricsService, logger *zap.Logger) *MediaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	cfg.APIPrefix = normalizePrefix(cfg.APIPrefix)
	return &MediaService{
		store:          store,
		uploadSigner:   uploadSigner,
		downloadSigner: downloadSigner,
		config:         cfg,
		metrics:        metrics,
		logger:         logger,
	}
}

// RequestUploadTarget reserves a storage id and returns a signed URL accepting its bytes.
func (s *MediaService) RequestUploadTarget(ctx context.Context) (*dto.UploadTarget, error) {
	token, expiresAt, err := s.uploadSigner.Generate(storage.PurposeUpload, uuid.NewString())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to issue upload target")
	}
	return &dto.UploadTarget{
		UploadURL: s.url("/storage/upload/" + token),
		ExpiresAt: expiresAt,
	}, nil
}

// Upload stores body under the storage id reserved by token. Each target accepts one upload.
func (s *MediaService) Upload(ctx context.Context, token string, body io.Reader) (*dto.UploadResult, error) {
	id, err := s.uploadSigner.Verify(token, storage.PurposeUpload)
	if err != nil {
		s.metrics.Upload("invalid_target")
		return nil, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, "upload target invalid or expired")
	}
	exists, err := s.store.Exists(id)
	if err != nil {
		s.metrics.Upload("store_error")
		return nil, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, appErrors.ErrUploadFailed.Message)
	}
	if exists {
		s.metrics.Upload("target_used")
		return nil, appErrors.Clone(appErrors.ErrUploadFailed, "upload target already used")
	}
	if err := s.save(id, body); err != nil {
		return nil, err
	}
	return &dto.UploadResult{StorageID: id}, nil
}

// Store saves an image received by the API and returns its new storage id.
func (s *MediaService) Store(ctx context.Context, upload dto.ImageUpload) (string, error) {
	if upload.Body == nil {
		s.metrics.Upload("empty")
		return "", appErrors.Clone(appErrors.ErrUploadFailed, "image is empty")
	}
	id := uuid.NewString()
	if err := s.save(id, upload.Body); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MediaService) save(id string, body io.Reader) error {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		s.metrics.Upload("read_error")
		return appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, appErrors.ErrUploadFailed.Message)
	}
	head = head[:n]
	if n == 0 {
		s.metrics.Upload("empty")
		return appErrors.Clone(appErrors.ErrUploadFailed, "image is empty")
	}

	detected := mimetype.Detect(head)
	if !s.allowed(detected) {
		s.metrics.Upload("rejected_type")
		return appErrors.Clone(appErrors.ErrUploadFailed, fmt.Sprintf("content type %s is not accepted", detected.String()))
	}

	if _, err := s.store.SaveStream(id, io.MultiReader(bytes.NewReader(head), body)); err != nil {
		if errors.Is(err, storage.ErrBlobTooLarge) {
			s.metrics.Upload("too_large")
			return appErrors.Clone(appErrors.ErrUploadFailed, "image exceeds size limit")
		}
		if errors.Is(err, storage.ErrBlobExists) {
			s.metrics.Upload("target_used")
			return appErrors.Clone(appErrors.ErrUploadFailed, "upload target already used")
		}
		s.metrics.Upload("store_error")
		s.logger.Error("store image", zap.String("storage_id", id), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, appErrors.ErrUploadFailed.Message)
	}
	s.metrics.Upload("ok")
	return nil
}

func (s *MediaService) allowed(detected *mimetype.MIME) bool {
	if len(s.config.AllowedMIMEs) == 0 {
		return true
	}
	for _, m := range s.config.AllowedMIMEs {
		if detected.Is(m) {
			return true
		}
	}
	return false
}

// ResolveURL turns a storage id into a signed download URL. Absent or unknown ids resolve to nil.
func (s *MediaService) ResolveURL(ctx context.Context, id *string) (*string, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	exists, err := s.store.Exists(*id)
	if err != nil {
		return nil, fmt.Errorf("resolve image %s: %w", *id, err)
	}
	if !exists {
		return nil, nil
	}
	token, _, err := s.downloadSigner.Generate(storage.PurposeDownload, *id)
	if err != nil {
		return nil, fmt.Errorf("sign image %s: %w", *id, err)
	}
	url := s.url("/storage/files/" + token)
	return &url, nil
}

// Open returns the blob addressed by a download token together with its sniffed content type.
// The caller closes the file.
func (s *MediaService) Open(ctx context.Context, token string) (*os.File, string, error) {
	id, err := s.downloadSigner.Verify(token, storage.PurposeDownload)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	file, err := s.store.Open(id)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, "", appErrors.Internal(err, "failed to open file")
	}
	detected, err := mimetype.DetectReader(file)
	if err == nil {
		_, err = file.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = file.Close()
		return nil, "", appErrors.Internal(err, "failed to read file")
	}
	return file, detected.String(), nil
}

func (s *MediaService) url(path string) string {
	return s.config.PublicBaseURL + s.config.APIPrefix + path
}

func normalizePrefix(prefix string) string {
	trimmed := strings.Trim(prefix, "/")
	if trimmed == "" {
		return ""
	}
	return "/" + trimmed
}
