package images

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WEBP decoder

	"garment-classifier/internal/core/types"
)

var ErrUnreadableImage = errors.New("unreadable image")

const (
	DefaultMaxSide = 512
	DefaultQuality = 88
)

// Encoder turns a source image into a bounded JPEG payload for a request body.
type Encoder struct {
	MaxSide int
	Quality int
}

func NewEncoder(maxSide, quality int) *Encoder {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Encoder{MaxSide: maxSide, Quality: quality}
}

func (e *Encoder) Encode(ref types.ImageRef) (types.EncodedImage, error) {
	data, err := os.ReadFile(ref.String())
	if err != nil {
		return types.EncodedImage{}, fmt.Errorf("%w: %s: %w", ErrUnreadableImage, ref, err)
	}
	return e.EncodeBytes(ref, data)
}

func (e *Encoder) EncodeBytes(ref types.ImageRef, data []byte) (types.EncodedImage, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return types.EncodedImage{}, fmt.Errorf("%w: %s: %w", ErrUnreadableImage, ref, err)
	}

	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return types.EncodedImage{}, fmt.Errorf("%w: %s: empty image", ErrUnreadableImage, ref)
	}

	// Fit never upsizes: images already within bounds are only cloned.
	resized := imaging.Fit(src, e.MaxSide, e.MaxSide, imaging.Lanczos)

	// JPEG has no alpha channel, composite onto white so transparent areas
	// don't turn black.
	size := resized.Bounds().Size()
	flat := imaging.New(size.X, size.Y, color.White)
	flat = imaging.Overlay(flat, resized, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := e.writeJPEG(&buf, ref, flat); err != nil {
		return types.EncodedImage{}, err
	}

	return types.EncodedImage{
		Ref:    ref,
		Base64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:  size.X,
		Height: size.Y,
		Bytes:  buf.Len(),
	}, nil
}

func (e *Encoder) writeJPEG(w io.Writer, ref types.ImageRef, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(e.Quality)); err != nil {
		return fmt.Errorf("%w: %s: error encoding as jpeg: %w", ErrUnreadableImage, ref, err)
	}
	return nil
}
