package main

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/render"
)

func runRender(ctx context.Context, env *cliEnv, args []string) error {
	data, err := env.store.Read(ctx, args[0])
	if err != nil {
		return err
	}
	doc, err := pdf.Load(data, pdf.WithLogger(env.logger))
	if err != nil {
		return err
	}
	defer doc.Close()

	var buf bytes.Buffer
	if err := renderPage(ctx, doc, env.opts.page, env.cfg.RenderScale, env.opts.maxWidth, &buf); err != nil {
		return err
	}

	if env.cfg.OutputPath == "" {
		_, err := env.out.Write(buf.Bytes())
		return err
	}
	if err := env.store.Write(ctx, env.cfg.OutputPath, buf.Bytes()); err != nil {
		return err
	}
	env.logger.Info("preview written", "page", env.opts.page, "output", env.cfg.OutputPath, "bytes", buf.Len())
	return nil
}

// renderPage writes page n as PNG, downscaled to maxWidth when positive
func renderPage(ctx context.Context, doc pdf.Document, n int, scale float64, maxWidth int, w io.Writer) error {
	if n < 1 || n > doc.PageCount() {
		return fmt.Errorf("page %d out of range [1, %d]", n, doc.PageCount())
	}
	page, err := doc.Page(n)
	if err != nil {
		return err
	}

	surface := render.NewSurface()
	if _, err := render.NewRasterizer().Render(ctx, page, scale, surface); err != nil {
		return fmt.Errorf("failed to render page %d: %w", n, err)
	}
	if maxWidth <= 0 {
		return surface.EncodePNG(w)
	}
	return png.Encode(w, render.Downscale(surface.Image, maxWidth))
}
