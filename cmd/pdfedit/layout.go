package main

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/coords"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/extractors"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/pdf"
)

// PageLayout is the layout of one page as printed by the layout command
type PageLayout struct {
	Page    int                 `json:"page"`
	Size    coords.Size         `json:"size"`
	Canvas  coords.Size         `json:"canvas"`
	Scale   float64             `json:"scale"`
	Regions []extractors.Region `json:"regions"`
}

func runLayout(ctx context.Context, env *cliEnv, args []string) error {
	data, err := env.store.Read(ctx, args[0])
	if err != nil {
		return err
	}
	doc, err := pdf.Load(data, pdf.WithLogger(env.logger))
	if err != nil {
		return err
	}
	defer doc.Close()

	pages, err := layoutDocument(ctx, doc, env.cfg.RenderScale, env.cfg.LayoutWorkers)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(env.out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Source string       `json:"source"`
		Pages  []PageLayout `json:"pages"`
	}{args[0], pages})
}

// layoutDocument extracts the regions of every page, at most workers pages at a time
func layoutDocument(ctx context.Context, doc pdf.Document, scale float64, workers int) ([]PageLayout, error) {
	pages := make([]PageLayout, doc.PageCount())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range pages {
		i := i
		n := i + 1
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			page, err := doc.Page(n)
			if err != nil {
				return fmt.Errorf("failed to get page %d: %w", n, err)
			}
			runs, err := page.TextRuns()
			if err != nil {
				return fmt.Errorf("failed to read text of page %d: %w", n, err)
			}

			rs := coords.NewRenderState(page.Size(), scale)
			regions, err := extractors.Extract(runs, rs)
			if err != nil {
				return fmt.Errorf("failed to lay out page %d: %w", n, err)
			}
			if regions == nil {
				regions = []extractors.Region{}
			}

			pages[i] = PageLayout{Page: n, Size: page.Size(), Canvas: rs.Canvas, Scale: scale, Regions: regions}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}
