package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/quotevoice/cmd/quotevoice/internal/app"
	"github.com/haivivi/quotevoice/pkg/cli"
	"github.com/haivivi/quotevoice/pkg/llm"
)

// healthReport is the structured form of 'quotevoice health'.
type healthReport struct {
	Healthy bool              `json:"healthy" yaml:"healthy"`
	Checks  map[string]string `json:"checks" yaml:"checks"`
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the quote store, embedding, LLM and speaker backends",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			checks := runChecks(ctx, a)

			healthy := true
			for _, c := range checks {
				healthy = healthy && c.OK
			}
			// The styled report is the default; -o asks for data.
			if cmd.Flags().Changed("output") {
				r := healthReport{Healthy: healthy, Checks: make(map[string]string)}
				for _, c := range checks {
					status := "ok"
					if !c.OK {
						status = "error"
					}
					r.Checks[c.Name] = status + ": " + c.Detail
				}
				if err := output(r); err != nil {
					return err
				}
			} else {
				fmt.Print(cli.Report(cli.DefaultStyles, "Health", checks))
			}
			if !healthy {
				return errors.New("one or more backends are unavailable")
			}
			return nil
		})
	},
}

func runChecks(ctx context.Context, a *app.App) []cli.Check {
	var checks []cli.Check
	add := func(name string, err error, detail string) {
		if err != nil {
			checks = append(checks, cli.Check{Name: name, Detail: err.Error()})
			return
		}
		checks = append(checks, cli.Check{Name: name, OK: true, Detail: detail})
	}

	cfg := a.Config
	if store, err := a.Quotes(ctx); err != nil {
		add("quotes", err, "")
	} else {
		detail := cfg.Quotes.File
		if cfg.Quotes.Backend == "neo4j" {
			detail = cfg.Neo4j.URI
		}
		if err := store.Ping(ctx); err != nil {
			add("quotes", err, "")
		} else if n, err := store.CountPending(ctx); err != nil {
			add("quotes", err, "")
		} else {
			add("quotes", nil, fmt.Sprintf("%s, %d pending embeddings", detail, n))
		}
	}

	if emb, err := a.Embedder(); err != nil {
		add("embedding", err, "")
	} else if vec, err := emb.Embed(ctx, "health check"); err != nil {
		add("embedding", err, "")
	} else {
		add("embedding", nil, fmt.Sprintf("%s %s, %d dims", cfg.Embedding.Provider, cfg.Embedding.Model, len(vec)))
	}

	if gen, err := a.Generator(ctx); err != nil {
		add("llm", err, "")
	} else if o, ok := gen.(*llm.Ollama); ok {
		pulled, err := o.Check(ctx)
		switch {
		case err != nil:
			add("llm", err, "")
		case !pulled:
			add("llm", fmt.Errorf("model %s not pulled", o.Model), "")
		default:
			add("llm", nil, "ollama "+o.Model)
		}
	} else {
		add("llm", nil, cfg.LLM.Provider+" "+cfg.LLM.Model+" (not probed)")
	}

	if m, err := a.Matcher(ctx); err != nil {
		add("speakers", err, "")
	} else if st, err := m.Stats(ctx); err != nil {
		add("speakers", err, "")
	} else {
		add("speakers", nil, fmt.Sprintf("%d enrolled, store %s", st.Speakers, cfg.Speaker.Store))
	}
	return checks
}
