package textscan

import (
	"errors"
	"testing"
)

func TestFloatToleratesWhitespace(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		rest string
	}{
		{"  12.5  ,", 12.5, ","},
		{"-1.050;", -1.050, ";"},
		{"+3e2 x", 300, "x"},
		{".5", 0.5, ""},
		{"7.", 7, ""},
		{"\r\n 42\n;", 42, ";"},
		{"1e;", 1, "e;"},
	}
	for _, tc := range cases {
		c := New(tc.in)
		got, err := c.Float()
		if err != nil {
			t.Errorf("Float(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Float(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if c.Rest() != tc.rest {
			t.Errorf("Float(%q) rest = %q, want %q", tc.in, c.Rest(), tc.rest)
		}
	}
}

func TestFloatFailureDoesNotConsume(t *testing.T) {
	c := New("  abc")
	if _, err := c.Float(); err == nil {
		t.Fatalf("expected error")
	}
	if c.Offset() != 0 {
		t.Errorf("offset = %d, want 0", c.Offset())
	}

	c = New("-.")
	if _, err := c.Float(); err == nil {
		t.Fatalf("expected error for lone sign and dot")
	}
}

func TestUintRange(t *testing.T) {
	c := New(" 13 ,")
	v, err := c.Uint(8)
	if err != nil || v != 13 {
		t.Fatalf("Uint = %d, %v", v, err)
	}
	if c.Rest() != "," {
		t.Errorf("rest = %q", c.Rest())
	}

	c = New("300")
	if _, err := c.Uint(8); err == nil {
		t.Errorf("expected overflow error for 300 in 8 bits")
	}
	c = New("-1")
	if _, err := c.Uint(8); err == nil {
		t.Errorf("expected error for negative value")
	}
}

func TestToken(t *testing.T) {
	alpha := func(b byte) bool { return b >= 'A' && b <= 'Z' }
	c := New("  ABC123")
	tok, err := c.Token(alpha, "letters")
	if err != nil || tok != "ABC" {
		t.Fatalf("Token = %q, %v", tok, err)
	}
	if _, err := c.Token(alpha, "letters"); err == nil {
		t.Errorf("expected error when no letters follow")
	}
	if c.Rest() != "123" {
		t.Errorf("failed Token consumed input: rest = %q", c.Rest())
	}
}

func TestLineSplitsAllTerminators(t *testing.T) {
	c := New("one\r\ntwo\nthree\rfour")
	var got []string
	for !c.AtEOF() {
		line, err := c.Line()
		if err != nil {
			t.Fatalf("Line error: %v", err)
		}
		got = append(got, line.Rest())
	}
	want := []string{"one", "two", "three", "four"}
	if len(got) != len(want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
	if _, err := c.Line(); err == nil {
		t.Errorf("expected error at end of input")
	}
}

func TestLineCursorIsBounded(t *testing.T) {
	c := New("12.5\n99")
	line, _ := c.Line()
	if _, err := line.Float(); err != nil {
		t.Fatalf("Float: %v", err)
	}
	if !line.AtEOF() {
		t.Errorf("line cursor should be exhausted")
	}
	_, err := line.Float()
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SyntaxError, got %v", err)
	}
	if se.Msg != "expected number, found end of line" {
		t.Errorf("Msg = %q", se.Msg)
	}
}

func TestPositions(t *testing.T) {
	c := New("ab\ncd\nef")
	c.Advance(4)
	pos := c.Position()
	if pos.Line != 2 || pos.Column != 2 || pos.Offset != 4 {
		t.Errorf("Position = %+v, want line 2 column 2", pos)
	}
	if s := pos.String(); s != "line 2, column 2" {
		t.Errorf("String() = %q", s)
	}

	err := c.Errorf("bad %s", "thing")
	if err.Error() != "line 2, column 2: bad thing" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestExpectAndWrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	c := New("x")
	if err := c.Expect(';'); err == nil {
		t.Fatalf("expected error")
	}
	if err := c.Wrapf(sentinel, "wrapped"); !errors.Is(err, sentinel) {
		t.Errorf("Wrapf result should unwrap to sentinel")
	}
	if err := c.ExpectString("x"); err != nil {
		t.Errorf("ExpectString: %v", err)
	}
	if !c.AtEOF() {
		t.Errorf("expected EOF")
	}
}
