package llm

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
)

const fallbackMediaType = "image/jpeg"

// Image holds image bytes in one of the forms callers hand us. The zero
// value means "no image".
type Image struct {
	data    []byte
	reader  io.ReadSeeker
	decoded image.Image
}

func ImageBytes(data []byte) Image {
	return Image{data: data}
}

// ImageReader wraps a seekable stream. It is read from offset 0 on every
// use and left at the offset it had before.
func ImageReader(r io.ReadSeeker) Image {
	return Image{reader: r}
}

// ImageFromDecoded wraps an already decoded image. It is PNG-encoded on use.
func ImageFromDecoded(img image.Image) Image {
	return Image{decoded: img}
}

func (i Image) IsZero() bool {
	return len(i.data) == 0 && i.reader == nil && i.decoded == nil
}

// Bytes returns the raw encoded image.
func (i Image) Bytes() ([]byte, error) {
	switch {
	case i.reader != nil:
		return readRewound(i.reader)
	case i.decoded != nil:
		var buf bytes.Buffer
		if err := png.Encode(&buf, i.decoded); err != nil {
			return nil, fmt.Errorf("encode image: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return i.data, nil
	}
}

func (i Image) Base64() (string, error) {
	data, err := i.Bytes()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DataURL returns the image as a data: URL, the form OpenAI-compatible
// APIs accept inline.
func (i Image) DataURL() (string, error) {
	data, err := i.Bytes()
	if err != nil {
		return "", err
	}
	return "data:" + mediaType(data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func readRewound(r io.ReadSeeker) ([]byte, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("image stream is not seekable: %w", err)
	}
	if _, err = r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind image stream: %w", err)
	}
	data, readErr := io.ReadAll(r)
	if _, err = r.Seek(pos, io.SeekStart); err != nil && readErr == nil {
		readErr = fmt.Errorf("restore image stream offset: %w", err)
	}
	if readErr != nil {
		return nil, fmt.Errorf("read image stream: %w", readErr)
	}
	return data, nil
}

func mediaType(data []byte) string {
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return fallbackMediaType
}
