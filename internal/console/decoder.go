package console

import "golang.org/x/text/encoding"

// Sink receives decoded console lines.
type Sink interface {
	Append(line string)
	ReplaceLast(line string)
}

// Decoder splits a console byte stream into lines. "\n" ends a line; "\r"
// not followed by "\n" marks a progress redraw, so the next line replaces the
// one just written instead of scrolling. Bytes after the last terminator are
// held until more data arrives.
type Decoder struct {
	enc     encoding.Encoding
	pending []byte
	// redraw is set after a bare "\r": the line already in the sink is a
	// progress line the next text overwrites.
	redraw bool
	// sawCR is set when the previous byte was "\r" so a following "\n" is
	// treated as part of a CRLF pair.
	sawCR bool
}

// NewDecoder returns a decoder for the given Windows code page.
func NewDecoder(codePage int) *Decoder {
	return &Decoder{enc: EncodingForCodePage(codePage)}
}

// SetCodePage switches the character set for subsequent lines.
func (d *Decoder) SetCodePage(codePage int) {
	d.enc = EncodingForCodePage(codePage)
}

// Write feeds data into the decoder, emitting complete lines to sink.
func (d *Decoder) Write(sink Sink, data []byte) {
	for _, b := range data {
		switch b {
		case '\n':
			if d.sawCR && len(d.pending) == 0 {
				// CRLF: the line was already emitted at the CR.
				d.sawCR = false
				d.redraw = false
				continue
			}
			d.emit(sink)
			d.redraw = false
			d.sawCR = false
		case '\r':
			d.emit(sink)
			d.redraw = true
			d.sawCR = true
		default:
			d.sawCR = false
			d.pending = append(d.pending, b)
		}
	}
}

// Reset discards partial input and redraw state.
func (d *Decoder) Reset() {
	d.pending = d.pending[:0]
	d.redraw = false
	d.sawCR = false
}

func (d *Decoder) emit(sink Sink) {
	line := decodeLine(d.enc, d.pending)
	d.pending = d.pending[:0]
	if d.redraw {
		sink.ReplaceLast(line)
		return
	}
	sink.Append(line)
}
