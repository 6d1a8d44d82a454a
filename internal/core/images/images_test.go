package images

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garment-classifier/internal/core/types"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 200})
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func refs(paths ...string) []types.ImageRef {
	out := make([]types.ImageRef, len(paths))
	for i, p := range paths {
		out[i] = types.NewImageRef(p)
	}
	return out
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.JPG"), "x")
	writeFile(t, filepath.Join(dir, "a.png"), "x")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	writeFile(t, filepath.Join(dir, "nested", "c.webp"), "x")
	writeFile(t, filepath.Join(dir, "nested", "deeper", "d.tiff"), "x")

	t.Run("non recursive", func(t *testing.T) {
		got, err := Locate([]string{dir}, false)
		require.NoError(t, err)
		assert.Equal(t, refs(filepath.Join(dir, "a.png"), filepath.Join(dir, "b.JPG")), got)
	})

	t.Run("recursive", func(t *testing.T) {
		got, err := Locate([]string{dir}, true)
		require.NoError(t, err)
		assert.Equal(t, refs(
			filepath.Join(dir, "a.png"),
			filepath.Join(dir, "b.JPG"),
			filepath.Join(dir, "nested", "c.webp"),
			filepath.Join(dir, "nested", "deeper", "d.tiff"),
		), got)
	})

	t.Run("overlapping inputs are deduplicated", func(t *testing.T) {
		got, err := Locate([]string{
			filepath.Join(dir, "nested", "c.webp"),
			dir,
			filepath.Join(dir, "nested"),
			filepath.Join(dir, ".", "a.png"),
			filepath.Join(dir, "notes.txt"),
		}, true)
		require.NoError(t, err)
		assert.Len(t, got, 4)
		assert.True(t, slices.IsSorted(got))
	})
}

func TestLocateNoInputs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "readme.md"), "x")
	writeFile(t, filepath.Join(dir, "sub", "a.jpg"), "x")

	_, err := Locate([]string{dir, filepath.Join(dir, "missing.jpg")}, false)
	assert.ErrorIs(t, err, ErrNoInputsFound)

	_, err = Locate(nil, true)
	assert.ErrorIs(t, err, ErrNoInputsFound)
}

func decodeJPEG(t *testing.T, enc types.EncodedImage) image.Image {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(enc.Base64)
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestEncoderBoundsSize(t *testing.T) {
	dir := t.TempDir()
	encoder := NewEncoder(64, 88)

	for _, tc := range []struct {
		name  string
		w, h  int
		wantW int
		wantH int
	}{
		{"landscape", 300, 150, 64, 32},
		{"portrait", 100, 400, 16, 64},
		{"small image is not upsized", 40, 20, 40, 20},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".png")
			writePNG(t, path, tc.w, tc.h)

			enc, err := encoder.Encode(types.NewImageRef(path))
			require.NoError(t, err)

			img := decodeJPEG(t, enc)
			assert.Equal(t, tc.wantW, img.Bounds().Dx())
			assert.Equal(t, tc.wantH, img.Bounds().Dy())
			assert.Equal(t, tc.wantW, enc.Width)
			assert.LessOrEqual(t, max(enc.Width, enc.Height), 64)
			assert.Contains(t, enc.DataURL(), "data:image/jpeg;base64,")
		})
	}
}

func TestEncoderUnreadableImage(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.jpg")
	writeFile(t, corrupt, "definitely not a jpeg")

	encoder := NewEncoder(0, 0)
	assert.Equal(t, DefaultMaxSide, encoder.MaxSide)

	_, err := encoder.Encode(types.NewImageRef(corrupt))
	require.ErrorIs(t, err, ErrUnreadableImage)

	_, err = encoder.Encode(types.NewImageRef(filepath.Join(dir, "missing.png")))
	require.ErrorIs(t, err, ErrUnreadableImage)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestEncoderWriteFailureIsUnreadable(t *testing.T) {
	encoder := NewEncoder(64, 80)
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))

	err := encoder.writeJPEG(failingWriter{}, "shirt.png", img)
	require.ErrorIs(t, err, ErrUnreadableImage)
	assert.Contains(t, err.Error(), "disk full")
}
