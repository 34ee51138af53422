package reserialize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// EncodeWinAnsi maps text onto WinAnsiEncoding bytes. Characters the
// encoding has no code for become '?'.
func EncodeWinAnsi(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		switch r {
		case '\n', '\r', '\t':
			out = append(out, ' ')
			continue
		}
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// LiteralString renders raw bytes as a PDF literal string, parentheses included
func LiteralString(raw []byte) string {
	var sb strings.Builder
	sb.Grow(len(raw) + 2)
	sb.WriteByte('(')
	for _, b := range raw {
		switch {
		case b == '(' || b == ')' || b == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(b)
		case b < 0x20 || b > 0x7e:
			fmt.Fprintf(&sb, "\\%03o", b)
		default:
			sb.WriteByte(b)
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// num formats a coordinate for a content stream
func num(f float64) string {
	return strconv.FormatFloat(math.Round(f*1e4)/1e4, 'f', -1, 64)
}
