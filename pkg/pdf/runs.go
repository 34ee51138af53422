package pdf

import (
	"math"
	"strings"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
)

// GroupRuns merges glyphs, in the order they were shown, into text runs.
//
// A glyph continues the current run when it has the same font and size, sits
// on the same baseline and starts close to where the previous glyph ended.
// Readers drop space glyphs, so a gap wider than the space factor is turned
// back into a single space.
func GroupRuns(glyphs []Glyph, opts ...RunOption) []TextRun {
	config := defaultRunConfig()
	for _, opt := range opts {
		opt(config)
	}

	var runs []TextRun
	var text strings.Builder
	var cur *runState

	flush := func() {
		if cur == nil {
			return
		}
		runs = append(runs, TextRun{
			Index:     len(runs),
			Text:      text.String(),
			Transform: coords.FontMatrix(cur.size, cur.x, cur.y),
			Width:     cur.end - cur.x,
			Font:      cur.font,
		})
		text.Reset()
		cur = nil
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}

		if cur != nil && !cur.continues(g, config) {
			flush()
		}

		if cur == nil {
			if strings.TrimSpace(g.S) == "" && g.W == 0 {
				// a bare space glyph cannot anchor a run
				continue
			}
			cur = &runState{font: g.Font, size: g.FontSize, x: g.X, y: g.Y, end: g.X}
		} else if gap := g.X - cur.end; gap > config.SpaceFactor*cur.size && !cur.trailingSpace {
			text.WriteByte(' ')
		}

		text.WriteString(g.S)
		cur.trailingSpace = strings.HasSuffix(g.S, " ")
		cur.end = math.Max(cur.end, g.X+g.W)
	}
	flush()

	return runs
}

type runState struct {
	font          string
	size          float64
	x, y          float64
	end           float64
	trailingSpace bool
}

func (s *runState) continues(g Glyph, config *runConfig) bool {
	if g.Font != s.font || math.Abs(g.FontSize-s.size) > 0.01 {
		return false
	}
	if math.Abs(g.Y-s.y) > config.YTolerance*s.size {
		return false
	}
	gap := g.X - s.end
	// moving back by more than half an em is a new line or a new column
	return gap >= -0.5*s.size && gap <= config.SplitFactor*s.size
}
