package main

import (
	"context"
	"encoding/json"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/pdf"
)

func runInfo(ctx context.Context, env *cliEnv, args []string) error {
	data, err := env.store.Read(ctx, args[0])
	if err != nil {
		return err
	}
	doc, err := pdf.Load(data, pdf.WithLogger(env.logger))
	if err != nil {
		return err
	}
	defer doc.Close()

	info := struct {
		Source    string  `json:"source"`
		PageCount int     `json:"page_count"`
		Title     string  `json:"title,omitempty"`
		Scale     float64 `json:"scale"`
		Output    string  `json:"output"`
	}{
		Source:    args[0],
		PageCount: doc.PageCount(),
		Scale:     env.cfg.RenderScale,
		Output:    env.cfg.Output(args[0]),
	}
	if titled, ok := doc.(interface{ Title() string }); ok {
		info.Title = titled.Title()
	}

	enc := json.NewEncoder(env.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
