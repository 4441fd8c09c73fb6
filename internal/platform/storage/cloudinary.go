package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	cld "github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStore stores receipt and report attachments in Cloudinary.
type CloudinaryStore struct {
	client *cld.Cloudinary
	logger *slog.Logger
}

func NewCloudinaryStore(url string, logger *slog.Logger) (*CloudinaryStore, error) {
	if url == "" {
		return nil, errors.New("cloudinary url is required")
	}
	client, err := cld.NewFromURL(url)
	if err != nil {
		return nil, err
	}
	return &CloudinaryStore{client: client, logger: logger}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, folder string, name string, data []byte) (string, error) {
	result, err := s.client.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:   folder,
		PublicID: name,
	})
	if err != nil {
		return "", err
	}
	return result.PublicID, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, path string, opts DeleteOptions) error {
	_, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: path})
	if err != nil {
		return err
	}
	if opts.Rollback && s.logger != nil {
		s.logger.Info("attachment rolled back",
			"event", "attachment_rollback",
			"module", "internal/platform/storage",
			"layer", "platform",
			"path", path,
		)
	}
	return nil
}
