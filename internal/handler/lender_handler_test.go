package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/service"
	"github.com/dafibh/lendora/lendora-backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogoUpload(t *testing.T, e *echo.Echo, filename string, data []byte) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/lender/logo", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	setupAuthContext(c, testStaffID)
	return c, rec
}

func pngImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, x%height, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestGetLender_Defaults(t *testing.T) {
	e := echo.New()
	b := newBackOffice()
	handler := NewLenderHandler(b.lender)

	c, rec := newContext(e, http.MethodGet, "/api/v1/lender", "")
	require.NoError(t, handler.GetLender(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.Lender
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.DefaultLenderName, resp.BusinessName)
	assert.Equal(t, "LN", resp.LoanPrefix)
	assert.Equal(t, "INV", resp.InvoicePrefix)
	assert.Equal(t, "DOC", resp.DocumentPrefix)
}

func TestUpdateLender(t *testing.T) {
	e := echo.New()
	b := newBackOffice()
	handler := NewLenderHandler(b.lender)

	body := `{"businessName":"Rao Finance","loanPrefix":"rf","invoicePrefix":"rfi","documentPrefix":"rfd"}`
	c, rec := newContext(e, http.MethodPut, "/api/v1/lender", body)
	require.NoError(t, handler.UpdateLender(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp domain.Lender
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Rao Finance", resp.BusinessName)
	assert.Equal(t, "RF", resp.LoanPrefix)
	assert.Equal(t, "RFI", resp.InvoicePrefix)

	c, rec = newContext(e, http.MethodPut, "/api/v1/lender", `{"businessName":"Rao Finance","loanPrefix":"","invoicePrefix":"I","documentPrefix":"D"}`)
	require.NoError(t, handler.UpdateLender(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "RF", b.lenderRepo.Lender.LoanPrefix)
}

func TestLogo_StorageNotConfigured(t *testing.T) {
	e := echo.New()
	b := newBackOffice()
	handler := NewLenderHandler(b.lender)

	c, rec := newLogoUpload(t, e, "logo.png", pngImage(t, 64, 64))
	require.NoError(t, handler.UploadLogo(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c, rec = newContext(e, http.MethodGet, "/api/v1/lender/logo", "")
	require.NoError(t, handler.GetLogo(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogo_UploadAndDownload(t *testing.T) {
	e := echo.New()
	lenderRepo := testutil.NewMockLenderRepository()
	store := testutil.NewMockDocumentStore()
	handler := NewLenderHandler(service.NewLenderService(lenderRepo, store))

	c, rec := newLogoUpload(t, e, "logo.png", pngImage(t, 1024, 256))
	require.NoError(t, handler.UploadLogo(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp domain.Lender
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.LogoKey)
	require.Contains(t, store.Objects, *resp.LogoKey)

	stored, err := png.Decode(bytes.NewReader(store.Objects[*resp.LogoKey]))
	require.NoError(t, err)
	assert.Equal(t, service.MaxLogoWidth, stored.Bounds().Dx())
	assert.Equal(t, 128, stored.Bounds().Dy())

	c, rec = newContext(e, http.MethodGet, "/api/v1/lender/logo", "")
	require.NoError(t, handler.GetLogo(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, store.Objects[*resp.LogoKey], rec.Body.Bytes())
}

func TestUploadLogo_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     func(t *testing.T) []byte
	}{
		{"wrong extension", "logo.gif", func(t *testing.T) []byte { return pngImage(t, 64, 64) }},
		{"not an image", "logo.png", func(t *testing.T) []byte { return []byte("plain text") }},
		{"too small", "logo.png", func(t *testing.T) []byte { return pngImage(t, 16, 16) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			store := testutil.NewMockDocumentStore()
			handler := NewLenderHandler(service.NewLenderService(testutil.NewMockLenderRepository(), store))

			c, rec := newLogoUpload(t, e, tt.filename, tt.data(t))
			require.NoError(t, handler.UploadLogo(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, store.Objects)
		})
	}
}

func TestUploadLogo_MissingFile(t *testing.T) {
	e := echo.New()
	b := newBackOffice()
	handler := NewLenderHandler(b.lender)

	c, rec := newContext(e, http.MethodPost, "/api/v1/lender/logo", `{}`)
	require.NoError(t, handler.UploadLogo(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
