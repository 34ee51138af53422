package pdf

import (
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf16"
)

var (
	bfcharSection  = regexp.MustCompile(`(?s)beginbfchar(.*?)endbfchar`)
	bfcharEntry    = regexp.MustCompile(`<([0-9A-Fa-f]+)>\s*<([0-9A-Fa-f]*)>`)
	bfrangeSection = regexp.MustCompile(`(?s)beginbfrange(.*?)endbfrange`)
	bfrangeEntry   = regexp.MustCompile(`<([0-9A-Fa-f]+)>\s*<([0-9A-Fa-f]+)>\s*(<[0-9A-Fa-f]*>|\[[^\]]*\])`)
	hexToken       = regexp.MustCompile(`<([0-9A-Fa-f]*)>`)
)

// ToUnicode maps character codes of a font to text, parsed from the font's
// ToUnicode CMap stream.
type ToUnicode struct {
	chars  map[uint32]string
	ranges []cmapRange
	// codeLen is the byte length of a code, taken from the source codes
	codeLen int
}

type cmapRange struct {
	lo, hi uint32
	// start is the text of lo; later codes increment its last rune
	start []rune
	// array holds one text per code when the range maps to an array
	array []string
}

// ParseToUnicode parses the bfchar and bfrange sections of a CMap.
// Entries that cannot be decoded are skipped.
func ParseToUnicode(data []byte) *ToUnicode {
	cm := &ToUnicode{chars: make(map[uint32]string), codeLen: 1}
	content := string(data)

	for _, section := range bfcharSection.FindAllStringSubmatch(content, -1) {
		for _, m := range bfcharEntry.FindAllStringSubmatch(section[1], -1) {
			code, n, ok := parseCode(m[1])
			if !ok {
				continue
			}
			cm.noteLen(n)
			cm.chars[code] = utf16Text(m[2])
		}
	}

	for _, section := range bfrangeSection.FindAllStringSubmatch(content, -1) {
		for _, m := range bfrangeEntry.FindAllStringSubmatch(section[1], -1) {
			lo, n, ok1 := parseCode(m[1])
			hi, _, ok2 := parseCode(m[2])
			if !ok1 || !ok2 || hi < lo {
				continue
			}
			cm.noteLen(n)

			r := cmapRange{lo: lo, hi: hi}
			if strings.HasPrefix(m[3], "[") {
				for _, item := range hexToken.FindAllStringSubmatch(m[3], -1) {
					r.array = append(r.array, utf16Text(item[1]))
				}
			} else {
				r.start = []rune(utf16Text(strings.Trim(m[3], "<>")))
				if len(r.start) == 0 {
					continue
				}
			}
			cm.ranges = append(cm.ranges, r)
		}
	}

	return cm
}

func (cm *ToUnicode) noteLen(n int) {
	if n > cm.codeLen {
		cm.codeLen = n
	}
}

// CodeLen returns the byte length of the font's character codes
func (cm *ToUnicode) CodeLen() int { return cm.codeLen }

// Len returns the number of mapped codes
func (cm *ToUnicode) Len() int {
	n := len(cm.chars)
	for _, r := range cm.ranges {
		n += int(r.hi-r.lo) + 1
	}
	return n
}

// Lookup returns the text of code
func (cm *ToUnicode) Lookup(code uint32) (string, bool) {
	if s, ok := cm.chars[code]; ok {
		return s, true
	}
	for _, r := range cm.ranges {
		if code < r.lo || code > r.hi {
			continue
		}
		offset := int(code - r.lo)
		if r.array != nil {
			if offset < len(r.array) {
				return r.array[offset], true
			}
			return "", false
		}
		text := append([]rune(nil), r.start...)
		text[len(text)-1] += rune(offset)
		return string(text), true
	}
	return "", false
}

func parseCode(s string) (uint32, int, bool) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) == 0 || len(b) > 4 {
		return 0, 0, false
	}
	var code uint32
	for _, c := range b {
		code = code<<8 | uint32(c)
	}
	return code, len(b), true
}

// utf16Text decodes a big-endian UTF-16 hex string, the destination form of
// ToUnicode entries. A single byte is taken as a code point.
func utf16Text(s string) string {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) == 0 {
		return ""
	}
	if len(b) == 1 {
		return string(rune(b[0]))
	}
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	if len(units) > 0 && units[0] == 0xFEFF {
		units = units[1:]
	}
	return string(utf16.Decode(units))
}
