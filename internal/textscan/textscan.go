// Package textscan provides the small cursor and token primitives shared by
// the project and survey data grammars: whitespace-tolerant numbers,
// identifier runs, line splitting and positioned syntax errors.
package textscan

import (
	"fmt"
	"strconv"
	"strings"
)

// Position locates a byte in the scanned text. Line and Column are 1-based.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// SyntaxError is a grammar mismatch at a position in the input.
type SyntaxError struct {
	Pos Position
	Msg string
	Err error // optional cause, e.g. a package sentinel
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Cursor walks a string without copying it. A Cursor returned by Line is
// bounded to that line but reports positions relative to the whole input.
type Cursor struct {
	src string
	off int
	end int
}

// New returns a cursor at the start of src.
func New(src string) *Cursor {
	return &Cursor{src: src, end: len(src)}
}

// Offset is the current byte offset into the full input.
func (c *Cursor) Offset() int { return c.off }

// Mark returns a value that Reset accepts to backtrack.
func (c *Cursor) Mark() int { return c.off }

// Reset moves the cursor back to a previous Mark.
func (c *Cursor) Reset(mark int) { c.off = mark }

// AtEOF reports whether nothing is left to read.
func (c *Cursor) AtEOF() bool { return c.off >= c.end }

// Peek returns the next byte without consuming it.
func (c *Cursor) Peek() (byte, bool) {
	if c.AtEOF() {
		return 0, false
	}
	return c.src[c.off], true
}

// Rest returns the unread text.
func (c *Cursor) Rest() string { return c.src[c.off:c.end] }

// Advance skips n bytes, stopping at the end of input.
func (c *Cursor) Advance(n int) {
	c.off += n
	if c.off > c.end {
		c.off = c.end
	}
}

// Position reports the current location.
func (c *Cursor) Position() Position { return c.PositionAt(c.off) }

// PositionAt converts an offset of the full input into a Position.
func (c *Cursor) PositionAt(off int) Position {
	if off > len(c.src) {
		off = len(c.src)
	}
	before := c.src[:off]
	line := strings.Count(before, "\n") + 1
	col := off - strings.LastIndexByte(before, '\n')
	return Position{Offset: off, Line: line, Column: col}
}

// Errorf builds a SyntaxError at the current position.
func (c *Cursor) Errorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: c.Position(), Msg: fmt.Sprintf(format, args...)}
}

// Wrapf builds a SyntaxError at the current position that unwraps to cause.
func (c *Cursor) Wrapf(cause error, format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: c.Position(), Msg: fmt.Sprintf(format, args...), Err: cause}
}

// IsSpace matches space, tab, CR, LF, form feed and vertical tab.
func IsSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', '\v':
		return true
	}
	return false
}

// IsBlank matches space and tab only.
func IsBlank(b byte) bool { return b == ' ' || b == '\t' }

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// SkipSpace consumes any IsSpace bytes and returns how many were skipped.
func (c *Cursor) SkipSpace() int {
	return len(c.TakeWhile(IsSpace))
}

// SkipBlank consumes spaces and tabs.
func (c *Cursor) SkipBlank() int {
	return len(c.TakeWhile(IsBlank))
}

// Consume advances past prefix if the input starts with it.
func (c *Cursor) Consume(prefix string) bool {
	if strings.HasPrefix(c.Rest(), prefix) {
		c.off += len(prefix)
		return true
	}
	return false
}

// ConsumeByte advances past b if it is the next byte.
func (c *Cursor) ConsumeByte(b byte) bool {
	if next, ok := c.Peek(); ok && next == b {
		c.off++
		return true
	}
	return false
}

// Expect consumes b or fails with a SyntaxError naming it.
func (c *Cursor) Expect(b byte) error {
	if c.ConsumeByte(b) {
		return nil
	}
	return c.Errorf("expected %q, found %s", b, c.describeNext())
}

// ExpectString consumes s or fails with a SyntaxError naming it.
func (c *Cursor) ExpectString(s string) error {
	if c.Consume(s) {
		return nil
	}
	return c.Errorf("expected %q, found %s", s, c.describeNext())
}

// TakeWhile consumes the longest run of bytes matching keep.
func (c *Cursor) TakeWhile(keep func(byte) bool) string {
	start := c.off
	for c.off < c.end && keep(c.src[c.off]) {
		c.off++
	}
	return c.src[start:c.off]
}

// TakeUntil consumes bytes up to, not including, the first one matching stop.
func (c *Cursor) TakeUntil(stop func(byte) bool) string {
	return c.TakeWhile(func(b byte) bool { return !stop(b) })
}

// Token consumes a non-empty run of bytes matching keep, after optional
// leading whitespace. what names the token in error messages.
func (c *Cursor) Token(keep func(byte) bool, what string) (string, error) {
	mark := c.Mark()
	c.SkipSpace()
	tok := c.TakeWhile(keep)
	if tok == "" {
		err := c.Errorf("expected %s, found %s", what, c.describeNext())
		c.Reset(mark)
		return "", err
	}
	return tok, nil
}

// Float reads a decimal number surrounded by optional whitespace.
func (c *Cursor) Float() (float64, error) {
	mark := c.Mark()
	c.SkipSpace()
	lex := c.scanFloat()
	if lex == "" {
		err := c.Errorf("expected number, found %s", c.describeNext())
		c.Reset(mark)
		return 0, err
	}
	v, err := strconv.ParseFloat(lex, 64)
	if err != nil {
		c.Reset(mark)
		return 0, c.Errorf("invalid number %q", lex)
	}
	c.SkipSpace()
	return v, nil
}

// Uint reads an unsigned integer that fits in bitSize bits, surrounded by
// optional whitespace.
func (c *Cursor) Uint(bitSize int) (uint64, error) {
	mark := c.Mark()
	c.SkipSpace()
	lex := c.TakeWhile(isDigit)
	if lex == "" {
		err := c.Errorf("expected unsigned integer, found %s", c.describeNext())
		c.Reset(mark)
		return 0, err
	}
	v, err := strconv.ParseUint(lex, 10, bitSize)
	if err != nil {
		c.Reset(mark)
		c.SkipSpace()
		return 0, c.Errorf("integer %s out of range for %d bits", lex, bitSize)
	}
	c.SkipSpace()
	return v, nil
}

// scanFloat consumes [+-]digits[.digits][(e|E)[+-]digits] and returns the
// lexeme, or "" (consuming nothing) when no digits are present.
func (c *Cursor) scanFloat() string {
	start := c.off
	if b, ok := c.Peek(); ok && (b == '+' || b == '-') {
		c.off++
	}
	intPart := c.TakeWhile(isDigit)
	fracPart := ""
	if b, ok := c.Peek(); ok && b == '.' {
		c.off++
		fracPart = c.TakeWhile(isDigit)
	}
	if intPart == "" && fracPart == "" {
		c.off = start
		return ""
	}
	if b, ok := c.Peek(); ok && (b == 'e' || b == 'E') {
		expMark := c.off
		c.off++
		if b, ok := c.Peek(); ok && (b == '+' || b == '-') {
			c.off++
		}
		if c.TakeWhile(isDigit) == "" {
			c.off = expMark
		}
	}
	return c.src[start:c.off]
}

// Line returns a cursor bounded to the next line and advances past the line
// terminator (CRLF, LF or a lone CR). It fails at end of input.
func (c *Cursor) Line() (*Cursor, error) {
	if c.AtEOF() {
		return nil, c.Errorf("unexpected end of input")
	}
	start := c.off
	c.TakeUntil(func(b byte) bool { return b == '\n' || b == '\r' })
	line := &Cursor{src: c.src, off: start, end: c.off}
	if !c.Consume("\r\n") && !c.ConsumeByte('\n') {
		c.ConsumeByte('\r')
	}
	return line, nil
}

func (c *Cursor) describeNext() string {
	b, ok := c.Peek()
	if !ok {
		if c.end < len(c.src) {
			return "end of line"
		}
		return "end of input"
	}
	switch b {
	case '\n':
		return "end of line"
	case '\r':
		return "carriage return"
	}
	return strconv.QuoteRune(rune(b))
}
