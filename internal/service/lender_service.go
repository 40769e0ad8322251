package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	MaxLogoSize   = 2 * 1024 * 1024 // 2MB
	MaxLogoWidth  = 512
	MinLogoWidth  = 32
	MinLogoHeight = 32
)

var (
	ErrLogoTooLarge               = domain.NewError(domain.ErrInvalidInput, "logo too large. Maximum size is 2MB")
	ErrLogoTooSmall               = domain.NewError(domain.ErrInvalidInput, "logo too small. Minimum 32x32 pixels")
	ErrLogoNotSet                 = domain.NewError(domain.ErrNotFound, "no logo uploaded")
	ErrDocumentStoreNotConfigured = errors.New("document storage not configured")
)

// allowedLogoExtensions lists the accepted upload extensions
var allowedLogoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// LenderInput contains the editable lender profile fields
type LenderInput struct {
	BusinessName       string
	Address            *string
	Phone              *string
	Email              *string
	RegistrationNumber *string
	LoanPrefix         string
	InvoicePrefix      string
	DocumentPrefix     string
}

// LenderService manages the single lender profile and its logo
type LenderService struct {
	lenderRepo domain.LenderRepository
	store      domain.DocumentStore
}

// NewLenderService creates a new LenderService. store may be nil when object
// storage is not configured; logo uploads are then refused.
func NewLenderService(lenderRepo domain.LenderRepository, store domain.DocumentStore) *LenderService {
	return &LenderService{lenderRepo: lenderRepo, store: store}
}

// GetLender returns the lender profile, creating the default one on first access
func (s *LenderService) GetLender(ctx context.Context) (*domain.Lender, error) {
	return s.lenderRepo.GetOrCreate(ctx, domain.DefaultLender())
}

// UpdateLender replaces the editable lender fields
func (s *LenderService) UpdateLender(ctx context.Context, input LenderInput) (*domain.Lender, error) {
	lender, err := s.GetLender(ctx)
	if err != nil {
		return nil, err
	}

	lender.BusinessName = strings.TrimSpace(input.BusinessName)
	lender.Address = input.Address
	lender.Phone = input.Phone
	lender.Email = input.Email
	lender.RegistrationNumber = input.RegistrationNumber
	lender.LoanPrefix = strings.ToUpper(strings.TrimSpace(input.LoanPrefix))
	lender.InvoicePrefix = strings.ToUpper(strings.TrimSpace(input.InvoicePrefix))
	lender.DocumentPrefix = strings.ToUpper(strings.TrimSpace(input.DocumentPrefix))
	if err := lender.Validate(); err != nil {
		return nil, err
	}

	return s.lenderRepo.Update(ctx, lender)
}

// decodeLogo validates the upload and returns the decoded image
func decodeLogo(data []byte, filename string) (image.Image, error) {
	if len(data) > MaxLogoSize {
		return nil, ErrLogoTooLarge
	}
	if !allowedLogoExtensions[strings.ToLower(filepath.Ext(filename))] {
		return nil, domain.ErrLenderLogoInvalid
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.ErrLenderLogoInvalid
	}

	bounds := img.Bounds()
	if bounds.Dx() < MinLogoWidth || bounds.Dy() < MinLogoHeight {
		return nil, ErrLogoTooSmall
	}
	return img, nil
}

// UploadLogo normalizes the image to a PNG at most 512px wide, stores it and
// points the lender profile at it. The previous logo is removed.
func (s *LenderService) UploadLogo(ctx context.Context, data []byte, filename string) (*domain.Lender, error) {
	if s.store == nil {
		return nil, ErrDocumentStoreNotConfigured
	}

	img, err := decodeLogo(data, filename)
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dx() > MaxLogoWidth {
		img = imaging.Resize(img, MaxLogoWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode logo: %w", err)
	}

	lender, err := s.GetLender(ctx)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("lender/logo-%s.png", uuid.New().String())
	if err := s.store.Upload(ctx, key, buf.Bytes(), "image/png"); err != nil {
		return nil, fmt.Errorf("failed to upload logo: %w", err)
	}

	previous := lender.LogoKey
	lender.LogoKey = &key
	updated, err := s.lenderRepo.Update(ctx, lender)
	if err != nil {
		_ = s.store.Delete(ctx, key)
		return nil, err
	}

	if previous != nil && *previous != key {
		_ = s.store.Delete(ctx, *previous)
	}
	return updated, nil
}

// GetLogo returns the stored logo as PNG bytes
func (s *LenderService) GetLogo(ctx context.Context) ([]byte, error) {
	lender, err := s.GetLender(ctx)
	if err != nil {
		return nil, err
	}
	if lender.LogoKey == nil {
		return nil, ErrLogoNotSet
	}
	if s.store == nil {
		return nil, ErrDocumentStoreNotConfigured
	}
	return s.store.Download(ctx, *lender.LogoKey)
}
