package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/pyhub-apps/pdfoverlay-golang/pkg/overlay"
	"github.com/pyhub-apps/pdfoverlay-golang/pkg/session"
)

// Script is a recorded sequence of interactions. JSON scripts parse as YAML.
//
//	steps:
//	  - page: 2
//	  - event: activate
//	    index: 0
//	  - event: input
//	    text: Adeus
//	  - event: confirm
//	  - {page: 1, event: replace, index: 3, text: Hello}
type Script struct {
	Steps []Step `yaml:"steps"`
}

// Step shows Page first when set, then runs Event. The replace event is
// activate, input and confirm in one step.
type Step struct {
	Page  int    `yaml:"page"`
	Event string `yaml:"event"`
	Index int    `yaml:"index"`
	Text  string `yaml:"text"`
}

const replaceEvent = "replace"

// ParseScript reads a YAML or JSON script
func ParseScript(data []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("failed to parse script: %w", err)
	}
	for i, step := range s.Steps {
		if step.Page == 0 && step.Event == "" {
			return Script{}, fmt.Errorf("step %d: needs a page or an event", i+1)
		}
		if step.Event == "" || step.Event == replaceEvent {
			continue
		}
		if _, err := overlay.ParseEventKind(step.Event); err != nil {
			return Script{}, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return s, nil
}

// Run replays the script against s
func (sc Script) Run(ctx context.Context, s *session.Session) error {
	for i, step := range sc.Steps {
		if err := step.run(ctx, s); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func (st Step) run(ctx context.Context, s *session.Session) error {
	if st.Page > 0 && st.Page != s.Info().Page {
		if err := s.ShowPage(ctx, st.Page); err != nil {
			return err
		}
	}

	switch st.Event {
	case "":
		return nil
	case replaceEvent:
		for _, ev := range []overlay.Event{
			{Kind: overlay.Activate, Index: st.Index},
			{Kind: overlay.Input, Text: st.Text},
			{Kind: overlay.Confirm},
		} {
			if err := s.Dispatch(ev); err != nil {
				return err
			}
		}
		return nil
	}

	kind, err := overlay.ParseEventKind(st.Event)
	if err != nil {
		return err
	}
	return s.Dispatch(overlay.Event{Kind: kind, Index: st.Index, Text: st.Text})
}

func runApply(ctx context.Context, env *cliEnv, args []string) error {
	var raw []byte
	var err error
	if env.opts.script == "" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = env.store.Read(ctx, env.opts.script)
	}
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	script, err := ParseScript(raw)
	if err != nil {
		return err
	}

	data, err := env.store.Read(ctx, args[0])
	if err != nil {
		return err
	}

	out, err := applyScript(ctx, env, data, script)
	if err != nil {
		return err
	}

	target := env.cfg.Output(args[0])
	if err := env.store.Write(ctx, target, out); err != nil {
		return err
	}
	env.logger.Info("edited document written", "output", target, "bytes", len(out))
	return nil
}

// applyScript opens data in a fresh session, replays script and saves
func applyScript(ctx context.Context, env *cliEnv, data []byte, script Script) ([]byte, error) {
	s := session.New(session.Options{Scale: env.cfg.RenderScale, Logger: env.logger})
	defer s.Close()

	if err := s.Open(ctx, data); err != nil {
		return nil, err
	}
	if err := script.Run(ctx, s); err != nil {
		return nil, err
	}

	out, err := s.Save(ctx)
	if err != nil {
		return nil, err
	}

	env.logger.Debug("applied edits", "edits", s.Info().Edits, "pages", s.Edits().Pages())
	return out, nil
}
