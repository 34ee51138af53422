package pdf

import (
	"bytes"
	"strconv"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
)

type operandKind int

const (
	operandNumber operandKind = iota
	operandString
	operandName
	operandArray
	operandOther
)

// operand is one operand of a content stream operator
type operand struct {
	kind  operandKind
	num   float64
	str   []byte
	array []operand
}

// contentLexer splits a content stream into operands and operators
type contentLexer struct {
	r *bytes.Reader
}

func newContentLexer(content []byte) *contentLexer {
	return &contentLexer{r: bytes.NewReader(content)}
}

// next returns the next operator and its operands. ok is false at the end of the stream.
func (l *contentLexer) next() (op string, operands []operand, ok bool) {
	for {
		tok, isOp, more := l.token()
		if !more {
			return "", nil, false
		}
		if isOp {
			if tok.kind == operandOther && string(tok.str) == "ID" {
				l.skipInlineImage()
			}
			return string(tok.str), operands, true
		}
		operands = append(operands, tok)
	}
}

// token reads one operand, or an operator when isOp is set
func (l *contentLexer) token() (tok operand, isOp bool, more bool) {
	for {
		b, err := l.r.ReadByte()
		if err != nil {
			return operand{}, false, false
		}
		if isWhitespace(b) {
			continue
		}

		switch b {
		case '%':
			l.skipComment()
			continue
		case '(':
			return operand{kind: operandString, str: l.readStringLiteral()}, false, true
		case '<':
			if next, err := l.r.ReadByte(); err == nil && next == '<' {
				l.skipDict()
				return operand{kind: operandOther}, false, true
			}
			l.r.UnreadByte()
			return operand{kind: operandString, str: l.readHexString()}, false, true
		case '[':
			return operand{kind: operandArray, array: l.readArray()}, false, true
		case ']', '>', ')', '{', '}':
			// stray delimiter
			continue
		case '/':
			return operand{kind: operandName, str: l.readRegular()}, false, true
		}

		l.r.UnreadByte()
		word := l.readRegular()
		if len(word) == 0 {
			// not a regular character, drop it
			l.r.ReadByte()
			continue
		}
		if num, err := strconv.ParseFloat(string(word), 64); err == nil {
			return operand{kind: operandNumber, num: num}, false, true
		}
		switch string(word) {
		case "true", "false", "null":
			return operand{kind: operandOther, str: word}, false, true
		}
		return operand{kind: operandOther, str: word}, true, true
	}
}

func (l *contentLexer) readArray() []operand {
	var items []operand
	for {
		b, err := l.r.ReadByte()
		if err != nil {
			return items
		}
		if isWhitespace(b) {
			continue
		}
		if b == ']' {
			return items
		}
		l.r.UnreadByte()

		tok, isOp, more := l.token()
		if !more {
			return items
		}
		if !isOp {
			items = append(items, tok)
		}
	}
}

// readStringLiteral reads a literal string after its opening parenthesis,
// resolving escapes
func (l *contentLexer) readStringLiteral() []byte {
	var out []byte
	depth := 1
	for {
		b, err := l.r.ReadByte()
		if err != nil {
			return out
		}
		switch b {
		case '\\':
			esc, err := l.r.ReadByte()
			if err != nil {
				return out
			}
			switch esc {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				// line continuation
				if next, err := l.r.ReadByte(); err == nil && next != '\n' {
					l.r.UnreadByte()
				}
			case '\n':
			default:
				if esc >= '0' && esc <= '7' {
					val := int(esc - '0')
					for i := 0; i < 2; i++ {
						d, err := l.r.ReadByte()
						if err != nil {
							break
						}
						if d < '0' || d > '7' {
							l.r.UnreadByte()
							break
						}
						val = val*8 + int(d-'0')
					}
					out = append(out, byte(val))
				} else {
					out = append(out, esc)
				}
			}
		case '(':
			depth++
			out = append(out, b)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, b)
		default:
			out = append(out, b)
		}
	}
}

// readHexString reads a hex string after its opening bracket. An odd final
// digit is padded with zero.
func (l *contentLexer) readHexString() []byte {
	var digits []byte
	for {
		b, err := l.r.ReadByte()
		if err != nil || b == '>' {
			break
		}
		if isHexDigit(b) {
			digits = append(digits, b)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	for i := range out {
		v, _ := strconv.ParseUint(string(digits[2*i:2*i+2]), 16, 8)
		out[i] = byte(v)
	}
	return out
}

// readRegular reads a run of regular characters
func (l *contentLexer) readRegular() []byte {
	var out []byte
	for {
		b, err := l.r.ReadByte()
		if err != nil {
			return out
		}
		if isWhitespace(b) || isDelimiter(b) {
			l.r.UnreadByte()
			return out
		}
		out = append(out, b)
	}
}

// skipDict skips a dictionary operand after its opening <<
func (l *contentLexer) skipDict() {
	depth := 1
	for depth > 0 {
		b, err := l.r.ReadByte()
		if err != nil {
			return
		}
		switch b {
		case '(':
			l.readStringLiteral()
		case '<':
			if next, err := l.r.ReadByte(); err == nil && next == '<' {
				depth++
			} else {
				l.r.UnreadByte()
			}
		case '>':
			if next, err := l.r.ReadByte(); err == nil && next == '>' {
				depth--
			} else {
				l.r.UnreadByte()
			}
		}
	}
}

// skipInlineImage skips the binary data between ID and EI
func (l *contentLexer) skipInlineImage() {
	var prev [3]byte
	for {
		b, err := l.r.ReadByte()
		if err != nil {
			return
		}
		prev[0], prev[1], prev[2] = prev[1], prev[2], b
		if isWhitespace(prev[0]) && prev[1] == 'E' && prev[2] == 'I' {
			next, err := l.r.ReadByte()
			if err != nil {
				return
			}
			if isWhitespace(next) || isDelimiter(next) {
				l.r.UnreadByte()
				return
			}
			prev[0], prev[1], prev[2] = prev[1], prev[2], next
		}
	}
}

func (l *contentLexer) skipComment() {
	for {
		b, err := l.r.ReadByte()
		if err != nil || b == '\n' || b == '\r' {
			return
		}
	}
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func isDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' || b == '[' || b == ']' ||
		b == '{' || b == '}' || b == '/' || b == '%'
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// textState holds the text parameters, saved and restored with the graphics state
type textState struct {
	font      *fontInfo
	fontName  string
	size      float64
	charSpace float64
	wordSpace float64
	scale     float64
	leading   float64
	rise      float64
}

type graphicsState struct {
	ctm  coords.Matrix
	text textState
}

// textInterpreter runs the text operators of a content stream and records
// every shown glyph in user space
type textInterpreter struct {
	fonts map[string]*fontInfo
	gs    graphicsState
	stack []graphicsState
	tm    coords.Matrix
	tlm   coords.Matrix

	glyphs []Glyph
}

func newTextInterpreter(fonts map[string]*fontInfo) *textInterpreter {
	return &textInterpreter{
		fonts: fonts,
		gs: graphicsState{
			ctm:  coords.Identity(),
			text: textState{scale: 1},
		},
		tm:  coords.Identity(),
		tlm: coords.Identity(),
	}
}

// Run interprets content and returns the glyphs shown, in order
func (p *textInterpreter) Run(content []byte) []Glyph {
	lex := newContentLexer(content)
	for {
		op, operands, ok := lex.next()
		if !ok {
			return p.glyphs
		}
		p.processOperator(op, operands)
	}
}

func (p *textInterpreter) processOperator(op string, args []operand) {
	ts := &p.gs.text
	switch op {
	case "q":
		p.stack = append(p.stack, p.gs)
	case "Q":
		if n := len(p.stack); n > 0 {
			p.gs = p.stack[n-1]
			p.stack = p.stack[:n-1]
		}
	case "cm":
		if m, ok := matrixArgs(args); ok {
			p.gs.ctm = m.Mul(p.gs.ctm)
		}

	case "BT":
		p.tm = coords.Identity()
		p.tlm = coords.Identity()
	case "ET":

	case "Tc":
		ts.charSpace = numArg(args, 0)
	case "Tw":
		ts.wordSpace = numArg(args, 0)
	case "Tz":
		ts.scale = numArg(args, 0) / 100
	case "TL":
		ts.leading = numArg(args, 0)
	case "Ts":
		ts.rise = numArg(args, 0)
	case "Tf":
		if len(args) >= 2 && args[0].kind == operandName {
			ts.fontName = string(args[0].str)
			ts.font = p.fonts[ts.fontName]
			ts.size = args[1].num
		}

	case "Td":
		p.moveLine(numArg(args, 0), numArg(args, 1))
	case "TD":
		ts.leading = -numArg(args, 1)
		p.moveLine(numArg(args, 0), numArg(args, 1))
	case "Tm":
		if m, ok := matrixArgs(args); ok {
			p.tm = m
			p.tlm = m
		}
	case "T*":
		p.moveLine(0, -ts.leading)

	case "Tj":
		if len(args) > 0 {
			p.show(args[len(args)-1].str)
		}
	case "'":
		p.moveLine(0, -ts.leading)
		if len(args) > 0 {
			p.show(args[len(args)-1].str)
		}
	case "\"":
		if len(args) >= 3 {
			ts.wordSpace = args[0].num
			ts.charSpace = args[1].num
			p.moveLine(0, -ts.leading)
			p.show(args[2].str)
		}
	case "TJ":
		if len(args) > 0 && args[len(args)-1].kind == operandArray {
			for _, item := range args[len(args)-1].array {
				switch item.kind {
				case operandString:
					p.show(item.str)
				case operandNumber:
					tx := -item.num / 1000 * ts.size * ts.scale
					p.tm = coords.Matrix{1, 0, 0, 1, tx, 0}.Mul(p.tm)
				}
			}
		}
	}
}

func (p *textInterpreter) moveLine(tx, ty float64) {
	p.tlm = coords.Matrix{1, 0, 0, 1, tx, ty}.Mul(p.tlm)
	p.tm = p.tlm
}

// show records the glyphs of one string and advances the text matrix
func (p *textInterpreter) show(s []byte) {
	ts := &p.gs.text
	f := ts.font
	if f == nil {
		f = fallbackFont
	}

	for _, code := range f.codes(s) {
		w0 := f.width(code)
		trm := coords.Matrix{ts.size * ts.scale, 0, 0, ts.size, 0, ts.rise}.Mul(p.tm).Mul(p.gs.ctm)
		origin := trm.Origin()

		p.glyphs = append(p.glyphs, Glyph{
			Font:     f.displayName(ts.fontName),
			FontSize: trm.ScaleY(),
			X:        origin.X,
			Y:        origin.Y,
			W:        w0 * trm.ScaleX(),
			S:        f.text(code),
		})

		tx := w0*ts.size + ts.charSpace
		if len(code) == 1 && code[0] == ' ' {
			tx += ts.wordSpace
		}
		p.tm = coords.Matrix{1, 0, 0, 1, tx * ts.scale, 0}.Mul(p.tm)
	}
}

func numArg(args []operand, i int) float64 {
	if i < len(args) && args[i].kind == operandNumber {
		return args[i].num
	}
	return 0
}

func matrixArgs(args []operand) (coords.Matrix, bool) {
	if len(args) < 6 {
		return coords.Matrix{}, false
	}
	var m coords.Matrix
	for i := range m {
		a := args[len(args)-6+i]
		if a.kind != operandNumber {
			return coords.Matrix{}, false
		}
		m[i] = a.num
	}
	return m, true
}
