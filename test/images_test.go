//go:build integration_test || all_tests

package test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/2beens/engblog/internal/auth"
	"github.com/2beens/engblog/internal/images"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{G: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (s *IntegrationTestSuite) upload(ctx context.Context, t *testing.T, token, contentType string, data []byte) (int, apiResponse) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="image"; filename="photo.png"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverEndpoint+"/upload", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set(auth.TokenHeader, token)
	}
	return s.send(t, req)
}

func (s *IntegrationTestSuite) TestImages_UploadServeDelete() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pngData := testPNG(t)

	status, _ := s.upload(ctx, t, "", "image/png", pngData)
	require.Equal(t, http.StatusUnauthorized, status)

	token := s.doLogin(ctx, t)
	status, resp := s.upload(ctx, t, token, "image/png", pngData)
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.Filename)
	assert.Equal(t, images.PublicPathPrefix+resp.Filename, resp.ImageURL)
	assert.Equal(t, ".png", filepath.Ext(resp.Filename))
	filename := resp.Filename

	stored, err := os.ReadFile(filepath.Join(s.imagesRoot, filename))
	require.NoError(t, err)
	assert.Equal(t, pngData, stored)

	served, err := s.httpClient.Get(serverEndpoint + resp.ImageURL)
	require.NoError(t, err)
	servedBytes, err := io.ReadAll(served.Body)
	_ = served.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, served.StatusCode)
	assert.Equal(t, pngData, servedBytes)

	status, resp = s.do(ctx, t, http.MethodGet, "/upload", token, nil)
	require.Equal(t, http.StatusOK, status)
	found := false
	for _, img := range resp.Images {
		if img.Filename == filename {
			found = true
			assert.Equal(t, int64(len(pngData)), img.Size)
		}
	}
	assert.True(t, found, "uploaded image listed")

	status, resp = s.do(ctx, t, http.MethodDelete, "/upload?filename="+filename, token, nil)
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, "Image deleted successfully", resp.Message)

	status, _ = s.do(ctx, t, http.MethodDelete, "/upload?filename="+filename, token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	_, err = os.Stat(filepath.Join(s.imagesRoot, filename))
	assert.True(t, os.IsNotExist(err))
}

func (s *IntegrationTestSuite) TestImages_Rejected() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := s.doLogin(ctx, t)

	status, resp := s.upload(ctx, t, token, "text/plain", []byte("definitely not an image"))
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(images.ReasonInvalidType), resp.Reason)

	// declared type fine, bytes are not an image
	status, resp = s.upload(ctx, t, token, "image/png", []byte("\x89PNG but truncated"))
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(images.ReasonInvalidType), resp.Reason)

	tooLarge := append(testPNG(t), bytes.Repeat([]byte{0}, 1<<20)...)
	status, resp = s.upload(ctx, t, token, "image/png", tooLarge)
	require.Equal(t, http.StatusBadRequest, status, fmt.Sprintf("%+v", resp))
	assert.Equal(t, string(images.ReasonTooLarge), resp.Reason)

	status, _ = s.do(ctx, t, http.MethodDelete, "/upload?filename=..%2Fsecret.png", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
