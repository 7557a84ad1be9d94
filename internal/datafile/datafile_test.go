package datafile_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"encmirror/internal/datafile"
)

type savedFilter struct {
	Name   string   `json:"name"`
	States []string `json:"states,omitempty"`
	Search string   `json:"search,omitempty"`
}

func sampleFilters() []savedFilter {
	return []savedFilter{
		{Name: "failed", States: []string{"failed"}},
		{Name: "news", Search: "ニュース"},
	}
}

func TestSaveThenRead(t *testing.T) {
	file := datafile.New[savedFilter](filepath.Join(t.TempDir(), "filters.dat"), nil)
	if err := file.Save(sampleFilters()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := file.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(got, sampleFilters()) {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func TestReadMissingFileIsEmpty(t *testing.T) {
	file := datafile.New[savedFilter](filepath.Join(t.TempDir(), "absent.dat"), nil)
	got, err := file.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no records, got %+v", got)
	}
}

func TestReadUpgradesLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.dat")
	legacy, err := json.Marshal(sampleFilters())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, legacy, 0o644); err != nil {
		t.Fatal(err)
	}

	file := datafile.New[savedFilter](path, nil)
	got, err := file.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(got, sampleFilters()) {
		t.Fatalf("unexpected records: %+v", got)
	}

	rewritten, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(rewritten, []byte("EMDF")) {
		t.Fatalf("expected file rewritten in current format, got %q", rewritten[:min(len(rewritten), 16)])
	}
	again, err := datafile.DecodeCurrent[savedFilter](rewritten)
	if err != nil {
		t.Fatalf("DecodeCurrent after upgrade: %v", err)
	}
	if !reflect.DeepEqual(again, sampleFilters()) {
		t.Fatalf("upgrade changed records: %+v", again)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.dat")
	if err := os.WriteFile(path, []byte("not a data file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := datafile.New[savedFilter](path, nil).Read(); err == nil {
		t.Fatal("expected decode error")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "not a data file" {
		t.Fatal("unreadable file must not be rewritten")
	}
}

func TestDecodeCurrentRequiresHeader(t *testing.T) {
	if _, err := datafile.DecodeCurrent[savedFilter]([]byte(`[]`)); !errors.Is(err, datafile.ErrNotCurrentFormat) {
		t.Fatalf("expected ErrNotCurrentFormat, got %v", err)
	}
}

func TestDecodeCurrentCorruptPayload(t *testing.T) {
	data, err := datafile.EncodeCurrent(sampleFilters())
	if err != nil {
		t.Fatal(err)
	}
	corrupt := append([]byte(nil), data[:len(data)-4]...)
	if _, err := datafile.DecodeCurrent[savedFilter](corrupt); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestDecodeLegacy(t *testing.T) {
	got, err := datafile.DecodeLegacy[savedFilter]([]byte(`[{"name":"all"}]`))
	if err != nil {
		t.Fatalf("DecodeLegacy: %v", err)
	}
	if len(got) != 1 || got[0].Name != "all" {
		t.Fatalf("unexpected records: %+v", got)
	}
	if _, err := datafile.DecodeLegacy[savedFilter]([]byte(`{`)); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestSaveEmptyList(t *testing.T) {
	file := datafile.New[savedFilter](filepath.Join(t.TempDir(), "filters.dat"), nil)
	if err := file.Save(nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := file.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %+v", got)
	}
}
