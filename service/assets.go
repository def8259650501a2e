package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/store"
)

// UploadsPath is the url prefix uploaded files are served under
const UploadsPath = "/uploads/"

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(filepath.Base(name), "_")
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}

// UploadAsset stores an image file and records it as an asset. Uploading
// bytes that were stored before returns the existing asset.
func (s *Service) UploadAsset(ctx context.Context, upload models.Upload) (models.Asset, error) {
	if err := ValidateUpload(upload, s.Limits); err != nil {
		return models.Asset{}, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(upload.Data))
	if err != nil {
		return models.Asset{}, fmt.Errorf("%w: unreadable image: %w", ErrInvalid, err)
	}

	sum := sha256.Sum256(upload.Data)
	hash := hex.EncodeToString(sum[:])

	existing, err := s.Store.FindAssetByHash(ctx, hash)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrItemNotFound) {
		return models.Asset{}, err
	}

	filename := strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + sanitizeFilename(upload.Filename)
	path := filepath.Join(s.UploadDir, filename)
	if err := os.MkdirAll(s.UploadDir, 0o755); err != nil {
		return models.Asset{}, err
	}
	if err := writeNewFile(path, upload.Data); err != nil {
		return models.Asset{}, err
	}

	owner, _ := OwnerFromContext(ctx)
	asset, err := s.Store.CreateAsset(ctx, models.Asset{
		OwnerId:      owner.Id,
		Url:          UploadsPath + filename,
		OriginalName: upload.Filename,
		Width:        cfg.Width,
		Height:       cfg.Height,
		Sha256:       hash,
		SizeBytes:    int64(len(upload.Data)),
		MimeType:     upload.MimeType,
	})
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			log.Printf("Failed to remove orphaned upload %s: %v", path, rmErr)
		}
		return models.Asset{}, err
	}

	return asset, nil
}

func writeNewFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func (s *Service) ListAssets(ctx context.Context, owner models.Owner) ([]models.Asset, error) {
	return s.Store.ListAssets(ctx, owner.Id)
}

func (s *Service) GetAsset(ctx context.Context, assetId string) (models.Asset, error) {
	return s.Store.GetAsset(ctx, assetId)
}
