package console

import (
	"fmt"
	"slices"
	"testing"

	"golang.org/x/text/encoding/japanese"
)

func TestBufferKeepsNewestLines(t *testing.T) {
	const capacity = 800
	buf := NewBuffer(capacity)
	for i := 0; i < capacity+50; i++ {
		buf.Append(fmt.Sprintf("line %d", i))
	}
	lines := buf.Lines()
	if len(lines) != capacity {
		t.Fatalf("len = %d, want %d", len(lines), capacity)
	}
	if lines[0] != "line 50" || lines[capacity-1] != fmt.Sprintf("line %d", capacity+49) {
		t.Fatalf("unexpected window %q .. %q", lines[0], lines[capacity-1])
	}
	for i := 1; i < len(lines); i++ {
		if lines[i] != fmt.Sprintf("line %d", i+50) {
			t.Fatalf("order broken at %d: %q", i, lines[i])
		}
	}
}

func TestReplaceLast(t *testing.T) {
	buf := NewBuffer(3)
	buf.ReplaceLast("first")
	if got := buf.Lines(); !slices.Equal(got, []string{"first"}) {
		t.Fatalf("ReplaceLast on empty buffer = %v", got)
	}
	buf.Append("10%")
	buf.ReplaceLast("20%")
	if got := buf.Lines(); !slices.Equal(got, []string{"first", "20%"}) {
		t.Fatalf("unexpected lines %v", got)
	}
}

func TestResetTruncatesToCapacity(t *testing.T) {
	buf := NewBuffer(2)
	input := []string{"a", "b", "c"}
	buf.Reset(input)
	if got := buf.Lines(); !slices.Equal(got, []string{"b", "c"}) {
		t.Fatalf("Reset kept %v", got)
	}
	input[2] = "mutated"
	if buf.Lines()[1] != "c" {
		t.Fatal("Reset aliased caller slice")
	}
	buf.Reset(nil)
	if buf.Len() != 0 {
		t.Fatalf("expected empty buffer, got %d lines", buf.Len())
	}
}

func TestLinesReturnsCopy(t *testing.T) {
	buf := NewBuffer(4)
	buf.Append("x")
	lines := buf.Lines()
	lines[0] = "y"
	if buf.Lines()[0] != "x" {
		t.Fatal("Lines aliased internal storage")
	}
	if buf.Cap() != 4 {
		t.Fatalf("Cap = %d", buf.Cap())
	}
	if NewBuffer(0).Cap() != DefaultCapacity {
		t.Fatal("expected default capacity for non-positive bound")
	}
}

func TestDecoderHandlesProgressRedraws(t *testing.T) {
	buf := NewBuffer(10)
	dec := NewDecoder(0)

	dec.Write(buf, []byte("start\n10%\r20%\r30"))
	if got := buf.Lines(); !slices.Equal(got, []string{"start", "20%"}) {
		t.Fatalf("unexpected lines mid-stream %v", got)
	}
	dec.Write(buf, []byte("%\ndone\r\nnext\n"))
	want := []string{"start", "30%", "done", "next"}
	if got := buf.Lines(); !slices.Equal(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
}

func TestDecoderCRLFAcrossWrites(t *testing.T) {
	buf := NewBuffer(10)
	dec := NewDecoder(0)
	dec.Write(buf, []byte("one\r"))
	dec.Write(buf, []byte("\ntwo\r\n"))
	if got := buf.Lines(); !slices.Equal(got, []string{"one", "two"}) {
		t.Fatalf("lines = %q", got)
	}
}

func TestDecoderShiftJIS(t *testing.T) {
	encoded, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte("エンコード開始\n"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	buf := NewBuffer(10)
	dec := NewDecoder(CodePageShiftJIS)
	dec.Write(buf, encoded)
	if got := buf.Lines(); len(got) != 1 || got[0] != "エンコード開始" {
		t.Fatalf("lines = %q", got)
	}
}

func TestDecoderInvalidUTF8IsSanitized(t *testing.T) {
	buf := NewBuffer(10)
	dec := NewDecoder(CodePageUTF8)
	dec.Write(buf, []byte{'a', 0xff, 'b', '\n'})
	if got := buf.Lines(); len(got) != 1 || got[0] != "a�b" {
		t.Fatalf("lines = %q", got)
	}
}

func TestDecoderReset(t *testing.T) {
	buf := NewBuffer(10)
	dec := NewDecoder(0)
	dec.Write(buf, []byte("partial"))
	dec.Reset()
	dec.Write(buf, []byte("fresh\n"))
	if got := buf.Lines(); !slices.Equal(got, []string{"fresh"}) {
		t.Fatalf("lines = %q", got)
	}
}
