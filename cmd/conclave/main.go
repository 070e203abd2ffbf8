// Binary conclave runs multi-agent debates from the command line.
//
// Subcommands:
//
//	run      -problem "..." [-context "..."] [-rounds N] [-questions]
//	list
//	show     -id deb-... [-html out.html]
//	feedback -id deb-... -vote up|down
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/conclave"
	"github.com/nevindra/conclave/internal/config"
	"github.com/nevindra/conclave/observer"
	"github.com/nevindra/conclave/provider/resolve"
	"github.com/nevindra/conclave/report"
	filestore "github.com/nevindra/conclave/store/file"
	"github.com/nevindra/conclave/store/postgres"
	"github.com/nevindra/conclave/store/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load(os.Getenv("CONCLAVE_CONFIG"))
	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(ctx, cfg, os.Args[2:])
	case "list":
		err = cmdList(ctx, cfg)
	case "show":
		err = cmdShow(ctx, cfg, os.Args[2:])
	case "feedback":
		err = cmdFeedback(ctx, cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("conclave: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: conclave <run|list|show|feedback> [flags]")
}

func cmdRun(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	problem := fs.String("problem", "", "problem statement (required)")
	background := fs.String("context", "", "background material")
	rounds := fs.Int("rounds", cfg.Debate.Rounds, "debate rounds")
	questions := fs.Bool("questions", cfg.Debate.CollectQuestions, "collect clarifying questions before round 1")
	fs.Parse(args)

	if *problem == "" {
		return fmt.Errorf("-problem is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	provider, err := resolve.Provider(resolve.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	hooks := progressHooks()
	var tracer conclave.Tracer
	if cfg.Observer.Enabled {
		pricing := make(map[string]observer.ModelPricing, len(cfg.Observer.Pricing))
		for model, p := range cfg.Observer.Pricing {
			pricing[model] = observer.ModelPricing{InputPerMillion: p.Input, OutputPerMillion: p.Output}
		}
		inst, shutdown, err := observer.Init(ctx, pricing)
		if err != nil {
			return fmt.Errorf("observer init: %w", err)
		}
		defer shutdown(context.Background())
		provider = observer.WrapProvider(provider, inst)
		tracer = observer.NewTracer()
		hooks = observer.InstrumentHooks(inst, hooks)
	}

	sumCfg := conclave.SummarizationConfig{
		Enabled:   cfg.Debate.Summarization.Enabled,
		Threshold: cfg.Debate.Summarization.Threshold,
		MaxLength: cfg.Debate.Summarization.MaxLength,
		Method:    conclave.SummarizationMethodLength,
	}
	summarizer := conclave.NewSummarizer(provider, conclave.SummarizerLogger(logger))

	var agents []*conclave.RoleAgent
	for _, a := range cfg.Agents {
		agents = append(agents, conclave.NewRoleAgent(agentConfig(a, cfg), provider,
			conclave.WithSummarization(sumCfg, summarizer),
			conclave.WithTracer(tracer),
			conclave.WithLogger(logger),
		))
	}
	judge := conclave.NewJudgeAgent(agentConfig(cfg.Judge, cfg), provider,
		conclave.JudgeSummarization(sumCfg, summarizer),
		conclave.JudgeTracer(tracer),
		conclave.JudgeLogger(logger),
	)

	guardOpts := []conclave.GuardOption{conclave.GuardLogger(logger)}
	if cfg.Guard.Blocking {
		guardOpts = append(guardOpts, conclave.Blocking())
	}
	if len(cfg.Guard.Patterns) > 0 {
		guardOpts = append(guardOpts, conclave.GuardPatterns(cfg.Guard.Patterns...))
	}

	orch := conclave.NewOrchestrator(store,
		conclave.OrchestratorGuard(conclave.NewInjectionGuard(guardOpts...)),
		conclave.OrchestratorTracer(tracer),
		conclave.OrchestratorLogger(logger),
	)

	req := conclave.DebateRequest{
		Problem: *problem,
		Context: *background,
		Config: conclave.DebateConfig{
			Rounds:             *rounds,
			TimeoutPerRound:    cfg.Debate.TimeoutPerRound(),
			IncludeFullHistory: cfg.Debate.IncludeFullHistory,
			Summarization:      &sumCfg,
			SynthesisMethod:    "judge",
		},
		CollectClarifications: *questions,
		MaxQuestionsPerAgent:  cfg.Debate.MaxQuestionsPerAgent,
		AnswerFunc:            promptForAnswers,
	}

	result, err := orch.Run(ctx, req, agents, judge, hooks)
	if err != nil {
		return err
	}

	fmt.Println(result.Solution.Description)
	fmt.Fprintf(os.Stderr, "\ndebate %s: %d rounds, %d tokens, %.1fs\n",
		result.DebateID, result.Metadata.TotalRounds, result.Metadata.TotalTokens,
		float64(result.Metadata.DurationMs)/1000)
	return nil
}

// promptForAnswers reads answers for clarifying questions from stdin.
// Empty lines leave the question unanswered.
func promptForAnswers(ctx context.Context, questions []conclave.AgentClarifications) (map[string]string, error) {
	answers := make(map[string]string)
	reader := bufio.NewReader(os.Stdin)
	for _, ac := range questions {
		for _, item := range ac.Items {
			fmt.Fprintf(os.Stderr, "[%s] %s\n> ", ac.AgentName, item.Question)
			line, err := reader.ReadString('\n')
			if err != nil {
				return answers, nil
			}
			if line = strings.TrimSpace(line); line != "" {
				answers[item.ID] = line
			}
		}
	}
	return answers, nil
}

func progressHooks() *conclave.Hooks {
	return &conclave.Hooks{
		RoundStart: func(round, total int) {
			fmt.Fprintf(os.Stderr, "round %d/%d\n", round, total)
		},
		PhaseStart: func(round int, phase conclave.Phase, tasks int) {
			fmt.Fprintf(os.Stderr, "  %s (%d tasks)\n", phase, tasks)
		},
		AgentComplete: func(agentName, activity string) {
			fmt.Fprintf(os.Stderr, "    %s finished %s\n", agentName, activity)
		},
		SummarizationComplete: func(agentName string, round, before, after int) {
			fmt.Fprintf(os.Stderr, "    %s summarized %d -> %d chars\n", agentName, before, after)
		},
		SynthesisStart: func() {
			fmt.Fprintln(os.Stderr, "synthesizing...")
		},
	}
}

func cmdList(ctx context.Context, cfg config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	debates, err := store.ListDebates(ctx)
	if err != nil {
		return err
	}
	for _, d := range debates {
		feedback := " "
		switch d.UserFeedback {
		case 1:
			feedback = "+"
		case -1:
			feedback = "-"
		}
		problem := d.Problem
		if len(problem) > 60 {
			problem = problem[:57] + "..."
		}
		fmt.Printf("%s  %-9s %s %s\n", d.ID, d.Status, feedback, problem)
	}
	return nil
}

func cmdShow(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	id := fs.String("id", "", "debate id (required)")
	htmlOut := fs.String("html", "", "write an HTML transcript to this file")
	fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.GetDebate(ctx, *id)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("debate not found: %s", *id)
	}

	if *htmlOut != "" {
		page, err := report.HTML(st)
		if err != nil {
			return err
		}
		return os.WriteFile(*htmlOut, []byte(page), 0o644)
	}
	fmt.Print(report.Markdown(st))
	return nil
}

func cmdFeedback(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("feedback", flag.ExitOnError)
	id := fs.String("id", "", "debate id (required)")
	vote := fs.String("vote", "", "up or down (required)")
	fs.Parse(args)

	if *id == "" || *vote == "" {
		return fmt.Errorf("-id and -vote are required")
	}
	var v int
	switch *vote {
	case "up":
		v = 1
	case "down":
		v = -1
	default:
		return fmt.Errorf("vote must be up or down, got %q", *vote)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.UpdateUserFeedback(ctx, *id, v)
}

// openStore builds the configured DebateStore backend.
func openStore(ctx context.Context, cfg config.Config) (conclave.DebateStore, error) {
	switch cfg.Store.Backend {
	case "", "file":
		return filestore.New(cfg.Store.Dir)
	case "sqlite":
		s := sqlite.New(cfg.Store.Path)
		if err := s.Init(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s := postgres.New(pool)
		if err := s.Init(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &poolClosingStore{Store: s, pool: pool}, nil
	default:
		return nil, &conclave.ErrConfig{Reason: "unknown store backend " + cfg.Store.Backend}
	}
}

// poolClosingStore closes the pgx pool when the CLI closes the store, since
// the CLI owns the pool it created.
type poolClosingStore struct {
	*postgres.Store
	pool *pgxpool.Pool
}

func (p *poolClosingStore) Close() error {
	p.pool.Close()
	return nil
}

// agentConfig maps a config-file agent onto the runtime config, filling the
// default model from the top-level LLM section.
func agentConfig(a config.AgentConfig, cfg config.Config) conclave.AgentConfig {
	model := a.Model
	if model == "" {
		model = cfg.LLM.Model
	}
	providerName := a.Provider
	if providerName == "" {
		providerName = cfg.LLM.Provider
	}
	return conclave.AgentConfig{
		ID:          a.ID,
		Name:        a.Name,
		Role:        conclave.Role(a.Role),
		Model:       model,
		Provider:    providerName,
		Temperature: a.Temperature,
		Enabled:     a.Enabled,
	}
}
