// Package videowriter implements the Writer boundary assumed by
// SPEC_FULL.md §1: "a writer that encodes raw frames to a container with a
// configurable fourcc tag." Video codec implementation is explicitly out of
// scope for this module, so Writer is an interface workers program against;
// the concrete fileWriter below is a minimal, dependency-free container
// (a fourcc header followed by length-prefixed JPEG frames) sufficient to
// exercise the full recording lifecycle in tests without a real video
// encoder.
package videowriter

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"os"
)

// magic identifies the container so a reader can sanity-check a file before
// attempting to parse it.
var magic = [4]byte{'S', 'V', 'W', '1'}

// Writer appends successive frames to an open recording.
type Writer interface {
	// WriteFrame encodes and appends one frame.
	WriteFrame(img image.Image) error
	// Close flushes and releases the underlying file. Must be called on
	// every exit path, including after a WriteFrame error.
	Close() error
}

// Open creates path and writes a header declaring width, height, fourcc and
// fps, ready for WriteFrame calls.
func Open(path string, width, height int, fourcc string, fps uint32) (Writer, error) {
	if len(fourcc) != 4 {
		return nil, fmt.Errorf("fourcc must be exactly 4 characters, got %q", fourcc)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create recording %s: %w", path, err)
	}

	w := &fileWriter{file: f, buf: bufio.NewWriter(f)}

	if _, err := w.buf.Write(magic[:]); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	header := struct {
		Width, Height int32
		FPS           uint32
	}{int32(width), int32(height), fps}
	if err := binary.Write(w.buf, binary.LittleEndian, header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := w.buf.WriteString(fourcc); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	return w, nil
}

type fileWriter struct {
	file   *os.File
	buf    *bufio.Writer
	frames int
}

func (w *fileWriter) WriteFrame(img image.Image) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("encode frame %d: %w", w.frames, err)
	}
	frame := buf.Bytes()

	if err := binary.Write(w.buf, binary.LittleEndian, uint32(len(frame))); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.buf.Write(frame); err != nil {
		return fmt.Errorf("write frame %d: %w", w.frames, err)
	}
	w.frames++
	return nil
}

func (w *fileWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("flush recording: %w", err)
	}
	return w.file.Close()
}
