// core/decode.go
package core

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding selects how raw file bytes are turned into text.
type Encoding string

const (
	// EncodingAuto decodes UTF-8 and falls back to Windows-1252 when the
	// bytes are not valid UTF-8.
	EncodingAuto        Encoding = "auto"
	EncodingUTF8        Encoding = "utf-8"
	EncodingWindows1252 Encoding = "windows-1252"
)

// ParseEncoding accepts the names used in configuration. The empty string
// means EncodingAuto.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return EncodingAuto, nil
	case "utf-8", "utf8":
		return EncodingUTF8, nil
	case "windows-1252", "cp1252", "latin1":
		return EncodingWindows1252, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", name)
	}
}

// Decode converts file bytes into text, removing a byte order mark.
func Decode(data []byte, enc Encoding) (string, error) {
	switch enc {
	case EncodingWindows1252:
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decode windows-1252: %w", err)
		}
		return string(out), nil
	case EncodingUTF8:
		return decodeUTF8(data)
	case EncodingAuto, "":
		if utf8.Valid(data) {
			return decodeUTF8(data)
		}
		return Decode(data, EncodingWindows1252)
	default:
		return "", fmt.Errorf("unsupported encoding %q", enc)
	}
}

func decodeUTF8(data []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return "", fmt.Errorf("decode utf-8: %w", err)
	}
	return string(out), nil
}
