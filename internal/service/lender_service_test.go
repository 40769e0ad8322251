package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestPNG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 20, G: 90, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func TestGetLender_CreatesDefaults(t *testing.T) {
	lenderRepo := testutil.NewMockLenderRepository()
	service := NewLenderService(lenderRepo, nil)

	lender, err := service.GetLender(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultLenderName, lender.BusinessName)
	assert.Equal(t, "LN", lender.LoanPrefix)
	assert.Equal(t, "INV", lender.InvoicePrefix)
	assert.Equal(t, "DOC", lender.DocumentPrefix)

	again, err := service.GetLender(context.Background())
	require.NoError(t, err)
	assert.Equal(t, lender.ID, again.ID)
}

func TestUpdateLender(t *testing.T) {
	lenderRepo := testutil.NewMockLenderRepository()
	service := NewLenderService(lenderRepo, nil)

	lender, err := service.UpdateLender(context.Background(), LenderInput{
		BusinessName:   " Rao Finance ",
		LoanPrefix:     "rf",
		InvoicePrefix:  "rfi",
		DocumentPrefix: "rfd",
	})
	require.NoError(t, err)

	assert.Equal(t, "Rao Finance", lender.BusinessName)
	assert.Equal(t, "RF", lender.LoanPrefix)
	assert.Equal(t, "RF", lenderRepo.Lender.LoanPrefix)

	_, err = service.UpdateLender(context.Background(), LenderInput{BusinessName: "Rao Finance", LoanPrefix: "RF"})
	assert.ErrorIs(t, err, domain.ErrLenderPrefixEmpty)

	_, err = service.UpdateLender(context.Background(), LenderInput{LoanPrefix: "A", InvoicePrefix: "B", DocumentPrefix: "C"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUploadLogo_ResizesAndStores(t *testing.T) {
	lenderRepo := testutil.NewMockLenderRepository()
	store := testutil.NewMockDocumentStore()
	service := NewLenderService(lenderRepo, store)

	lender, err := service.UploadLogo(context.Background(), createTestPNG(1024, 256), "logo.png")
	require.NoError(t, err)
	require.NotNil(t, lender.LogoKey)

	data, ok := store.Objects[*lender.LogoKey]
	require.True(t, ok)
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, MaxLogoWidth, img.Bounds().Dx())
	assert.Equal(t, 128, img.Bounds().Dy())

	logo, err := service.GetLogo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, data, logo)
}

func TestUploadLogo_ReplacesPrevious(t *testing.T) {
	store := testutil.NewMockDocumentStore()
	service := NewLenderService(testutil.NewMockLenderRepository(), store)

	first, err := service.UploadLogo(context.Background(), createTestPNG(64, 64), "a.png")
	require.NoError(t, err)
	second, err := service.UploadLogo(context.Background(), createTestPNG(64, 64), "b.png")
	require.NoError(t, err)

	assert.NotEqual(t, *first.LogoKey, *second.LogoKey)
	assert.Len(t, store.Objects, 1)
	_, ok := store.Objects[*second.LogoKey]
	assert.True(t, ok)
}

func TestUploadLogo_Rejections(t *testing.T) {
	service := NewLenderService(testutil.NewMockLenderRepository(), testutil.NewMockDocumentStore())

	tests := []struct {
		name     string
		data     []byte
		filename string
		want     error
	}{
		{"unsupported extension", createTestPNG(64, 64), "logo.gif", domain.ErrLenderLogoInvalid},
		{"not an image", []byte("plain text"), "logo.png", domain.ErrLenderLogoInvalid},
		{"too small", createTestPNG(10, 10), "logo.png", ErrLogoTooSmall},
		{"too large", make([]byte, MaxLogoSize+1), "logo.png", ErrLogoTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.UploadLogo(context.Background(), tt.data, tt.filename)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestUploadLogo_NoStore(t *testing.T) {
	service := NewLenderService(testutil.NewMockLenderRepository(), nil)

	_, err := service.UploadLogo(context.Background(), createTestPNG(64, 64), "logo.png")
	assert.ErrorIs(t, err, ErrDocumentStoreNotConfigured)
}

func TestGetLogo_NotSet(t *testing.T) {
	service := NewLenderService(testutil.NewMockLenderRepository(), testutil.NewMockDocumentStore())

	_, err := service.GetLogo(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
