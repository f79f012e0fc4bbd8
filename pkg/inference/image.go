package inference

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"strings"
)

// EncodePNGBase64 encodes an image as base64 PNG without a data URI prefix.
func EncodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DataURI builds a data URI for base64 data.
func DataURI(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}

// StripDataURI removes a leading "data:...;base64," prefix if present.
func StripDataURI(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.Index(s, ";base64,"); i >= 0 {
		return s[i+len(";base64,"):]
	}
	return s
}

// DecodeBase64Image decodes a base64 string to an image.
func DecodeBase64Image(b64 string) (image.Image, error) {
	data, err := base64.StdEncoding.DecodeString(StripDataURI(b64))
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
