package output

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Writer emits one JSON record per line. Compression is chosen by file
// extension: .gz and .zst streams are supported for large batch runs.
type Writer struct {
	file       *os.File
	compressor io.Closer
	buf        *bufio.Writer
	sink       io.Writer
}

// NewWriter opens a JSONL writer at path. "-" or the empty string writes to
// stdout without compression.
func NewWriter(path string) (*Writer, error) {
	if path == "" || path == "-" {
		buf := bufio.NewWriter(os.Stdout)
		return &Writer{buf: buf, sink: buf}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}

	w := &Writer{file: f}
	switch {
	case strings.HasSuffix(path, ".zst"):
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("creating zstd writer: %w", err)
		}
		w.compressor = zw
		w.buf = bufio.NewWriter(zw)
	case strings.HasSuffix(path, ".gz"):
		gw := gzip.NewWriter(f)
		w.compressor = gw
		w.buf = bufio.NewWriter(gw)
	default:
		w.buf = bufio.NewWriter(f)
	}
	w.sink = w.buf
	return w, nil
}

// Write emits one record as a JSON line.
func (w *Writer) Write(record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	if _, err := w.sink.Write(data); err != nil {
		return err
	}
	_, err = w.sink.Write([]byte("\n"))
	return err
}

// Close flushes and closes the underlying streams.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if w.compressor != nil {
		if err := w.compressor.Close(); err != nil {
			return err
		}
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
