package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// tsPacketSize is the MPEG-TS packet length; recordings in tests are padded
// null packets of this size.
const tsPacketSize = 188

// WriteFile writes a fake recording of size bytes made of null TS packets.
// A size <= 0 writes one packet.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = tsPacketSize
	}
	packet := make([]byte, tsPacketSize)
	packet[0] = 0x47
	packet[1], packet[2] = 0x1f, 0xff

	data := make([]byte, 0, size)
	for int64(len(data)) < size {
		n := min(int64(tsPacketSize), size-int64(len(data)))
		data = append(data, packet[:n]...)
	}
	WriteContent(t, path, data)
}

// WriteContent writes data to path, creating parent directories.
func WriteContent(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
