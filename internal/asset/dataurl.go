package asset

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/vincent-petithory/dataurl"
	_ "golang.org/x/image/webp"
)

var (
	ErrInvalidDataURL   = errors.New("invalid data URL")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// Supported maps the accepted MIME types to their image format names.
var Supported = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpeg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ParseDataURL splits a data URL into its lower-cased MIME type and payload.
func ParseDataURL(s string) (mime string, data []byte, err error) {
	du, err := dataurl.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return strings.ToLower(du.MediaType.ContentType()), du.Data, nil
}

// EncodeDataURL returns data as a base64 data URL.
func EncodeDataURL(mime string, data []byte) string {
	return dataurl.New(data, mime).String()
}

// DecodeDataURL decodes an image data URL. The declared MIME type must be
// a supported image type; the payload is decoded by sniffing its format.
func DecodeDataURL(s string) (image.Image, string, error) {
	mime, data, err := ParseDataURL(s)
	if err != nil {
		return nil, "", err
	}
	if _, ok := Supported[mime]; !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedImage, mime)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", mime, err)
	}
	return img, format, nil
}

// Decode is DecodeDataURL without the format, for background loading.
func Decode(dataURL string) (image.Image, error) {
	img, _, err := DecodeDataURL(dataURL)
	return img, err
}
