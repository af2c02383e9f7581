package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taskmux/taskmux/config"
	"github.com/taskmux/taskmux/internal/agent"
	"github.com/taskmux/taskmux/internal/capability"
	"github.com/taskmux/taskmux/internal/dispatch"
	"github.com/taskmux/taskmux/internal/history"
	"github.com/taskmux/taskmux/internal/search"
	"github.com/taskmux/taskmux/internal/telemetry"
	"github.com/taskmux/taskmux/provider"
)

// exampleRequests are run when dispatch is invoked without arguments.
var exampleRequests = []string{
	"I want you to summarize the following text and extract its named entities: " +
		"'Steve and Mary are going to the theater tomorrow. The new Marvel is playing in the morning. " +
		"They have made a reservation for the 10am session, and for food and drinks for a perfect shared time of happiness.'",
	"Translate this text into English: 'Bonjour tout le monde!'",
	"Search internet for openai chatgpt documentation",
}

func dispatchCMD() *cobra.Command {
	var cfgPath string
	var showAggregate bool
	var dispatchCmd = &cobra.Command{
		Use:   "dispatch [request...]",
		Short: "Dispatch one or more natural-language requests and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			engine, st, err := buildEngine(ctx, cfg)
			if err != nil {
				return err
			}
			if st != nil {
				defer st.Close()
			}

			requests := args
			if len(requests) == 0 {
				requests = exampleRequests
			}
			for i, request := range requests {
				fmt.Printf("\n--- Processing request %d ---\n", i+1)
				fmt.Printf("Request:\n%s\n", request)

				start := time.Now()
				aggregate, text, err := engine.Process(ctx, request)
				if err != nil {
					return fmt.Errorf("dispatching request %d: %w", i+1, err)
				}
				if showAggregate {
					raw, err := json.MarshalIndent(aggregate, "", "  ")
					if err != nil {
						return err
					}
					fmt.Printf("Aggregated result:\n%s\n", raw)
				}
				fmt.Printf("Final formatted text:\n%s\n", text)

				saveHistory(ctx, st, request, aggregate, text, time.Since(start))
			}
			return nil
		},
	}
	dispatchCmd.Flags().BoolVar(&showAggregate, "aggregate", false, "also print the aggregated JSON result")
	dispatchCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return dispatchCmd
}

// buildEngine wires the oracle, agents, registry and dispatcher, plus the
// optional history store.
func buildEngine(ctx context.Context, cfg *config.Config) (*dispatch.Dispatcher, history.Store, error) {
	oracle, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return nil, nil, err
	}
	tele := telemetry.NewTelemetry(cfg.Telemetry)

	idx, err := search.NewIndex(search.DefaultCorpus())
	if err != nil {
		return nil, nil, fmt.Errorf("building search index: %w", err)
	}
	agents, err := agent.NewAgents(cfg, oracle, tele, idx)
	if err != nil {
		return nil, nil, err
	}
	registry, err := capability.NewRegistry(agents, capability.DefaultActions())
	if err != nil {
		return nil, nil, err
	}
	formatter := agent.NewFormatterAgent(cfg, oracle, tele)
	engine := dispatch.NewDispatcher(cfg, oracle, registry, formatter, tele)

	st, err := history.NewStore(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	return engine, st, nil
}

func saveHistory(ctx context.Context, st history.Store, request string, aggregate capability.Aggregate, text string, elapsed time.Duration) {
	if st == nil {
		return
	}
	raw, err := json.Marshal(aggregate)
	if err != nil {
		return
	}
	rec := history.Record{
		ID:             uuid.New().String(),
		Request:        request,
		Aggregate:      raw,
		FormattedText:  text,
		ProcessingTime: elapsed,
		CreatedAt:      time.Now().UTC(),
	}
	if err := st.SaveDispatch(ctx, rec); err != nil {
		fmt.Printf("warning: failed to save dispatch history: %v\n", err)
	}
}
