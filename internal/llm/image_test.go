package llm

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
)

func testPNG(t *testing.T) (image.Image, []byte) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 80), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return img, buf.Bytes()
}

func TestImageRepresentationsEncodeIdentically(t *testing.T) {
	t.Parallel()

	decoded, raw := testPNG(t)

	atStart := bytes.NewReader(raw)
	advanced := bytes.NewReader(raw)
	if _, err := advanced.Seek(7, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}

	images := map[string]Image{
		"reader at 0":      ImageReader(atStart),
		"reader at offset": ImageReader(advanced),
		"bytes":            ImageBytes(raw),
		"decoded":          ImageFromDecoded(decoded),
	}

	want := base64.StdEncoding.EncodeToString(raw)
	for name, img := range images {
		got, err := img.Base64()
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", name, err)
		}
		if got != want {
			t.Fatalf("%s: encoded payload differs", name)
		}
		url, err := img.DataURL()
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", name, err)
		}
		if url != "data:image/png;base64,"+want {
			t.Fatalf("%s: unexpected data url prefix %q", name, url[:30])
		}
	}

	if pos, _ := advanced.Seek(0, io.SeekCurrent); pos != 7 {
		t.Fatalf("expected reader offset to be restored to 7, got %d", pos)
	}
}

func TestImageBase64RoundTrip(t *testing.T) {
	t.Parallel()

	_, raw := testPNG(t)
	enc, err := ImageBytes(raw).Base64()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	dec, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(dec, raw) {
		t.Fatalf("round trip changed the image bytes")
	}
}

func TestImageUnknownMediaTypeFallsBackToJPEG(t *testing.T) {
	t.Parallel()

	url, err := ImageBytes([]byte("not really an image")).DataURL()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Fatalf("expected jpeg fallback, got %q", url)
	}
}

func TestImageIsZero(t *testing.T) {
	t.Parallel()

	if !(Image{}).IsZero() {
		t.Fatalf("expected zero image")
	}
	if ImageBytes([]byte{1}).IsZero() {
		t.Fatalf("expected non-zero image")
	}
}
