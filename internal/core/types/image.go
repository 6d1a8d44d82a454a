package types

import "path/filepath"

// ImageRef identifies one source image. It is the dedup key during discovery and
// the correlation key (custom_id) for bulk jobs.
type ImageRef string

func NewImageRef(path string) ImageRef {
	return ImageRef(filepath.Clean(path))
}

func (r ImageRef) String() string {
	return string(r)
}

type EncodedImage struct {
	Ref    ImageRef
	Base64 string
	Width  int
	Height int
	Bytes  int
}

func (e EncodedImage) DataURL() string {
	return "data:image/jpeg;base64," + e.Base64
}
