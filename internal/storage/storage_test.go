package storage

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theater-canteen/internal/config"
	"github.com/iliyamo/theater-canteen/internal/qrcode"
)

var allowed = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

func TestCheck_AcceptsSniffedPNG(t *testing.T) {
	png, err := qrcode.RenderPNG("hello", 128)
	require.NoError(t, err)

	c, err := Check(bytes.NewReader(png), 5<<20, allowed)
	require.NoError(t, err)
	assert.Equal(t, "image/png", c.MIME)
	assert.Equal(t, ".png", c.Ext)
	assert.Len(t, c.Data, len(png))
}

func TestCheck_RejectsByContentNotName(t *testing.T) {
	_, err := Check(strings.NewReader("<html><body>not an image</body></html>"), 1024, allowed)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestCheck_TooLarge(t *testing.T) {
	png, err := qrcode.RenderPNG("hello", 256)
	require.NoError(t, err)

	_, err = Check(bytes.NewReader(png), int64(len(png)-1), allowed)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestCheck_Empty(t *testing.T) {
	_, err := Check(bytes.NewReader(nil), 10, allowed)
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestValidFolder(t *testing.T) {
	assert.True(t, ValidFolder(FolderProductTypes))
	assert.False(t, ValidFolder("../etc"))
}

func TestNewCloudinary_NotConfigured(t *testing.T) {
	_, err := NewCloudinary(config.UploadConfig{CloudName: "demo"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
