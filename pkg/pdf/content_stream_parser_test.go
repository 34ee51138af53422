package pdf

import (
	"math"
	"testing"
)

func TestContentLexer(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantOps  []string
		wantLast []operand
	}{
		{
			name:     "escaped literal",
			content:  `(a\(b\)\\c\101\n) Tj`,
			wantOps:  []string{"Tj"},
			wantLast: []operand{{kind: operandString, str: []byte("a(b)\\cA\n")}},
		},
		{
			name:     "nested parentheses",
			content:  `(f(o)o) Tj`,
			wantOps:  []string{"Tj"},
			wantLast: []operand{{kind: operandString, str: []byte("f(o)o")}},
		},
		{
			name:     "hex string with odd digit",
			content:  `<48 65 6C6C 6F7> Tj`,
			wantOps:  []string{"Tj"},
			wantLast: []operand{{kind: operandString, str: []byte("Hellop")}},
		},
		{
			name:     "font and size",
			content:  `/F1 12.5 Tf`,
			wantOps:  []string{"Tf"},
			wantLast: []operand{{kind: operandName, str: []byte("F1")}, {kind: operandNumber, num: 12.5}},
		},
		{
			name:    "comment and dictionary",
			content: "% header\n/OC <</MCID 3 /Alt (x>>y)>> BDC EMC",
			wantOps: []string{"BDC", "EMC"},
		},
		{
			name:    "inline image",
			content: "q BI /W 2 /H 1 ID \x00EI\xffEI\nEI Q",
			wantOps: []string{"q", "BI", "ID", "Q"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lex := newContentLexer([]byte(tt.content))
			var ops []string
			var last []operand
			for {
				op, operands, ok := lex.next()
				if !ok {
					break
				}
				ops = append(ops, op)
				if len(operands) > 0 {
					last = operands
				}
			}

			if len(ops) != len(tt.wantOps) {
				t.Fatalf("ops = %q, want %q", ops, tt.wantOps)
			}
			for i := range ops {
				if ops[i] != tt.wantOps[i] {
					t.Errorf("op %d = %q, want %q", i, ops[i], tt.wantOps[i])
				}
			}

			if tt.wantLast == nil {
				return
			}
			if len(last) != len(tt.wantLast) {
				t.Fatalf("operands = %+v, want %+v", last, tt.wantLast)
			}
			for i, want := range tt.wantLast {
				got := last[i]
				if got.kind != want.kind || got.num != want.num || string(got.str) != string(want.str) {
					t.Errorf("operand %d = %+v, want %+v", i, got, want)
				}
			}
		})
	}
}

func TestContentLexerArray(t *testing.T) {
	lex := newContentLexer([]byte(`[ (A) -250 (B) <43> ] TJ`))
	op, operands, ok := lex.next()
	if !ok || op != "TJ" {
		t.Fatalf("next() = %q, %v", op, ok)
	}
	if len(operands) != 1 || operands[0].kind != operandArray {
		t.Fatalf("operands = %+v", operands)
	}

	items := operands[0].array
	if len(items) != 4 {
		t.Fatalf("array = %+v", items)
	}
	if string(items[0].str) != "A" || items[1].num != -250 || string(items[2].str) != "B" || string(items[3].str) != "C" {
		t.Errorf("array = %+v", items)
	}
}

// monoFont is a simple font with every glyph half an em wide
func monoFont() map[string]*fontInfo {
	return map[string]*fontInfo{
		"F1": {baseFont: "Mono", firstChar: 32, widths: uniformWidths(95, 0.5), missingWidth: 0.5},
	}
}

func uniformWidths(n int, w float64) []float64 {
	widths := make([]float64, n)
	for i := range widths {
		widths[i] = w
	}
	return widths
}

func TestTextInterpreterPositions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		// expected x, y, size and width of each glyph
		want [][4]float64
	}{
		{
			name:    "Td",
			content: "BT /F1 10 Tf 72 700 Td (ab) Tj ET",
			want:    [][4]float64{{72, 700, 10, 5}, {77, 700, 10, 5}},
		},
		{
			name:    "Tm with scale",
			content: "BT /F1 1 Tf 20 0 0 20 100 200 Tm (a) Tj ET",
			want:    [][4]float64{{100, 200, 20, 10}},
		},
		{
			name:    "cm translates",
			content: "q 1 0 0 1 10 20 cm BT /F1 10 Tf 5 5 Td (a) Tj ET Q BT /F1 10 Tf 5 5 Td (b) Tj ET",
			want:    [][4]float64{{15, 25, 10, 5}, {5, 5, 10, 5}},
		},
		{
			name:    "TJ adjustment",
			content: "BT /F1 10 Tf 0 0 Td [(a) -1000 (b)] TJ ET",
			want:    [][4]float64{{0, 0, 10, 5}, {15, 0, 10, 5}},
		},
		{
			name:    "char and word spacing",
			content: "BT /F1 10 Tf 2 Tc 3 Tw ( a) Tj ET",
			want:    [][4]float64{{0, 0, 10, 5}, {10, 0, 10, 5}},
		},
		{
			name:    "horizontal scaling",
			content: "BT /F1 10 Tf 50 Tz (ab) Tj ET",
			want:    [][4]float64{{0, 0, 10, 2.5}, {2.5, 0, 10, 2.5}},
		},
		{
			name:    "leading and T*",
			content: "BT /F1 10 Tf 12 TL 0 100 Td (a) Tj T* (b) Tj (c) ' ET",
			want:    [][4]float64{{0, 100, 10, 5}, {0, 88, 10, 5}, {0, 76, 10, 5}},
		},
		{
			name:    "TD sets leading",
			content: "BT /F1 10 Tf 0 100 Td 0 -14 TD (a) Tj T* (b) Tj ET",
			want:    [][4]float64{{0, 86, 10, 5}, {0, 72, 10, 5}},
		},
		{
			name:    "rise",
			content: "BT /F1 10 Tf 3 Ts (a) Tj ET",
			want:    [][4]float64{{0, 3, 10, 5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			glyphs := newTextInterpreter(monoFont()).Run([]byte(tt.content))
			if len(glyphs) != len(tt.want) {
				t.Fatalf("got %d glyphs, want %d: %+v", len(glyphs), len(tt.want), glyphs)
			}
			for i, w := range tt.want {
				g := glyphs[i]
				got := [4]float64{g.X, g.Y, g.FontSize, g.W}
				for j := range got {
					if math.Abs(got[j]-w[j]) > 1e-9 {
						t.Errorf("glyph %d = %v, want %v", i, got, w)
						break
					}
				}
			}
		})
	}
}

func TestTextInterpreterText(t *testing.T) {
	cmap := ParseToUnicode([]byte("beginbfchar\n<0003> <00410042>\nendbfchar"))
	fonts := map[string]*fontInfo{
		"F1": {baseFont: "Mono", firstChar: 32, widths: uniformWidths(224, 0.5), missingWidth: 0.5},
		"F2": {baseFont: "CIDFont", composite: true, missingWidth: 1, cidWidths: map[int]float64{3: 0.25}, toUnicode: cmap},
	}

	tests := []struct {
		name    string
		content string
		want    []string
		font    string
	}{
		{"winansi", `BT /F1 10 Tf (caf\351 \200) Tj ET`, []string{"c", "a", "f", "é", " ", "€"}, "Mono"},
		{"composite", `BT /F2 10 Tf <00030004> Tj ET`, []string{"AB", ""}, "CIDFont"},
		{"unknown font", `BT /F9 10 Tf (x) Tj ET`, []string{"x"}, "F9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			glyphs := newTextInterpreter(fonts).Run([]byte(tt.content))
			if len(glyphs) != len(tt.want) {
				t.Fatalf("got %d glyphs, want %d", len(glyphs), len(tt.want))
			}
			for i, want := range tt.want {
				if glyphs[i].S != want {
					t.Errorf("glyph %d = %q, want %q", i, glyphs[i].S, want)
				}
				if glyphs[i].Font != tt.font {
					t.Errorf("glyph %d font = %q, want %q", i, glyphs[i].Font, tt.font)
				}
			}
		})
	}

	// composite advance uses the W entry, then DW
	glyphs := newTextInterpreter(fonts).Run([]byte(`BT /F2 10 Tf <00030004> Tj ET`))
	if glyphs[0].W != 2.5 || glyphs[1].X != 2.5 || glyphs[1].W != 10 {
		t.Errorf("composite glyphs = %+v", glyphs)
	}
}
