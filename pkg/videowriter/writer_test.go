package videowriter

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenRejectsShortFourcc(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avi")
	if _, err := Open(path, 640, 480, "AVI", 15); err == nil {
		t.Fatal("expected an error for a 3-character fourcc")
	}
}

func TestOpenWritesMagicAndHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avi")
	w, err := Open(path, 64, 48, "FMP4", 15)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.HasPrefix(data, magic[:]) {
		t.Fatal("expected file to start with the SVW1 magic")
	}
	if !bytes.Contains(data, []byte("FMP4")) {
		t.Error("expected the fourcc tag to be present in the header")
	}
}

func TestWriteFrameAppendsLengthPrefixedJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avi")
	w, err := Open(path, 8, 8, "FMP4", 10)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	if err := w.WriteFrame(img); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := w.WriteFrame(img); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	// magic(4) + width/height/fps header(12) + fourcc(4) + 2 frames each with
	// a 4-byte length prefix plus some non-zero JPEG payload.
	if info.Size() <= 4+12+4+4+4 {
		t.Errorf("file size %d looks too small for two written frames", info.Size())
	}
}
