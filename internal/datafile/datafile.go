package datafile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"encmirror/internal/codec"
	"encmirror/internal/fileutil"
	"encmirror/internal/logging"
)

// magic prefixes every file in the current format. The final byte is the
// format revision.
var magic = []byte{'E', 'M', 'D', 'F', 0x01}

// ErrNotCurrentFormat is returned by DecodeCurrent when the header is absent.
var ErrNotCurrentFormat = errors.New("datafile: missing format header")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("datafile: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("datafile: zstd decoder initialization failed: " + err.Error())
	}
}

// File is a list of T stored at a fixed path.
type File[T any] struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// New returns a File bound to path. A nil logger discards output.
func New[T any](path string, logger *slog.Logger) *File[T] {
	return &File[T]{path: path, logger: logging.NewComponentLogger(logger, "datafile")}
}

// Path returns the backing file location.
func (f *File[T]) Path() string {
	return f.path
}

// Read loads the list. A missing file yields an empty list.
func (f *File[T]) Read() ([]T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	items, currentErr := DecodeCurrent[T](data)
	if currentErr == nil {
		return items, nil
	}
	items, legacyErr := DecodeLegacy[T](data)
	if legacyErr != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, errors.Join(currentErr, legacyErr))
	}

	if err := f.saveLocked(items); err != nil {
		f.logger.Warn("legacy data file upgrade failed",
			logging.String("path", f.path),
			logging.Error(err),
		)
	} else {
		f.logger.Info("upgraded legacy data file",
			logging.String("path", f.path),
			logging.Int("records", len(items)),
		)
	}
	return items, nil
}

// Save replaces the file contents with items.
func (f *File[T]) Save(items []T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveLocked(items)
}

func (f *File[T]) saveLocked(items []T) error {
	data, err := EncodeCurrent(items)
	if err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(f.path, data, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", f.path, err)
	}
	return nil
}

// EncodeCurrent renders items in the current format.
func EncodeCurrent[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	payload, err := codec.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	out := make([]byte, 0, len(magic)+len(payload)/2)
	out = append(out, magic...)
	return zstdEncoder.EncodeAll(payload, out), nil
}

// DecodeCurrent parses data written by EncodeCurrent.
func DecodeCurrent[T any](data []byte) ([]T, error) {
	if !bytes.HasPrefix(data, magic) {
		return nil, ErrNotCurrentFormat
	}
	payload, err := zstdDecoder.DecodeAll(data[len(magic):], nil)
	if err != nil {
		return nil, fmt.Errorf("decompress records: %w", err)
	}
	var items []T
	if err := codec.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return items, nil
}

// DecodeLegacy parses the JSON array format used before the binary header.
func DecodeLegacy[T any](data []byte) ([]T, error) {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode legacy records: %w", err)
	}
	return items, nil
}
