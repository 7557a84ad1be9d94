package console

// DefaultCapacity is the number of lines a console keeps when none is given.
const DefaultCapacity = 800

// Buffer is a bounded FIFO of console lines. It is not safe for concurrent
// use; the mirror serializes access.
type Buffer struct {
	capacity int
	lines    []string
}

// NewBuffer returns an empty buffer holding at most capacity lines.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity}
}

// Append pushes line to the tail, evicting the oldest line when full.
func (b *Buffer) Append(line string) {
	b.lines = append(b.lines, line)
	b.trim()
}

// ReplaceLast overwrites the tail line, or appends when the buffer is empty.
func (b *Buffer) ReplaceLast(line string) {
	if len(b.lines) == 0 {
		b.Append(line)
		return
	}
	b.lines[len(b.lines)-1] = line
}

// Reset replaces the full contents, keeping only the newest lines that fit.
func (b *Buffer) Reset(lines []string) {
	if len(lines) > b.capacity {
		lines = lines[len(lines)-b.capacity:]
	}
	b.lines = append(make([]string, 0, len(lines)), lines...)
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *Buffer) Lines() []string {
	return append(make([]string, 0, len(b.lines)), b.lines...)
}

// Len reports the number of buffered lines.
func (b *Buffer) Len() int { return len(b.lines) }

// Cap reports the line bound.
func (b *Buffer) Cap() int { return b.capacity }

func (b *Buffer) trim() {
	over := len(b.lines) - b.capacity
	if over <= 0 {
		return
	}
	// Shift in place so the backing array does not grow without bound.
	n := copy(b.lines, b.lines[over:])
	clear(b.lines[n:])
	b.lines = b.lines[:n]
}
