// Package cli implements the regassist command line. Every command runs the
// same pipeline as the HTTP service against a local SQLite audit ledger.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"regassist/internal/checklist"
	"regassist/internal/diff"
	"regassist/internal/pipeline"
	"regassist/internal/platform/logger"
	"regassist/internal/risk"
	"regassist/internal/risk/ruleset"
	id "regassist/pkg/domain"
	"regassist/pkg/platform/audit"
	"regassist/pkg/platform/audit/store/sqlite"
	"regassist/pkg/requestcontext"
)

var version = "0.1.0"

// app holds flag values and the components built from them for one invocation.
type app struct {
	ledgerPath    string
	actor         string
	role          string
	logLevel      string
	rulesetPath   string
	scorerURL     string
	scorerTimeout time.Duration
	scorerRate    float64
	maxInFlight   int
	maxClauses    int
	threshold     float64

	store   *sqlite.Store
	log     *audit.Log
	service *pipeline.Service
	logger  *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "regassist",
		Short: "Regulatory compliance assistant",
		Long: `regassist segments regulatory documents into clauses, grades their risk,
compares versions and derives compliance checklists. Every operation is
recorded in an append-only, hash-chained audit ledger.

Example:
  regassist segment dora-2023.txt --version 2023 -o v2023.json
  regassist segment dora-2024.txt --version 2024 --document-id <id> --classify -o v2024.json
  regassist diff v2023.json v2024.json -o changes.json
  regassist checklist v2024.json --diff changes.json --export csv`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.ledgerPath, "ledger", defaultLedgerPath(), "SQLite audit ledger path")
	flags.StringVar(&a.actor, "actor", os.Getenv("USER"), "actor recorded on audit entries")
	flags.StringVar(&a.role, "role", string(id.RoleAnalyst), "role recorded on audit entries (admin, analyst, auditor)")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.StringVar(&a.rulesetPath, "ruleset", os.Getenv("REGASSIST_RULESET"), "YAML ruleset file (default: embedded)")
	flags.StringVar(&a.scorerURL, "scorer-url", os.Getenv("SCORER_URL"), "external risk scorer endpoint (default: rule-based only)")
	flags.DurationVar(&a.scorerTimeout, "scorer-timeout", risk.DefaultTimeout, "timeout per external scorer call")
	flags.Float64Var(&a.scorerRate, "scorer-rate", 0, "max scorer requests per second (0: unlimited)")
	flags.IntVar(&a.maxInFlight, "max-in-flight", risk.DefaultMaxInFlight, "concurrent clause classifications")
	flags.IntVar(&a.maxClauses, "max-clauses", diff.DefaultMaxClauses, "diff ceiling on clauses per version")
	flags.Float64Var(&a.threshold, "similarity-threshold", diff.DefaultThreshold, "minimum similarity for aligning clauses")

	root.AddCommand(a.segmentCmd())
	root.AddCommand(a.classifyCmd())
	root.AddCommand(a.diffCmd())
	root.AddCommand(a.checklistCmd())
	root.AddCommand(a.auditCmd())
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func defaultLedgerPath() string {
	if v := os.Getenv("REGASSIST_LEDGER"); v != "" {
		return v
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "regassist-audit.db"
	}
	return filepath.Join(dir, "regassist", "audit.db")
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	role, err := id.ParseRole(a.role)
	if err != nil {
		return fmt.Errorf("--role: %w", err)
	}
	actor := a.actor
	if actor == "" {
		actor = requestcontext.SystemActor
	}
	ctx := requestcontext.WithAuthorization(ctxOf(cmd), requestcontext.Auth{Actor: actor, Role: role})
	ctx = requestcontext.WithClientMetadata(ctx, "", "regassist-cli/"+version)
	cmd.SetContext(ctx)

	a.logger = logger.NewWithWriter(cmd.ErrOrStderr(), a.logLevel, "text")

	rules := ruleset.Default()
	if a.rulesetPath != "" {
		if rules, err = ruleset.Load(a.rulesetPath); err != nil {
			return fmt.Errorf("load ruleset: %w", err)
		}
	}

	a.store, err = sqlite.Open(a.ledgerPath)
	if err != nil {
		return err
	}
	a.log = audit.New(a.store, audit.WithLogger(a.logger))

	ruleBased := risk.NewRuleBased(rules)
	var classifier risk.Classifier = ruleBased
	if a.scorerURL != "" {
		scorer := risk.NewHTTPScorer(a.scorerURL, risk.WithRateLimit(a.scorerRate, a.maxInFlight))
		classifier = risk.NewExternal(scorer, ruleBased,
			risk.WithTimeout(a.scorerTimeout),
			risk.WithRecorder(a.log),
			risk.WithLogger(a.logger),
		)
	}

	a.service, err = pipeline.New(a.log,
		pipeline.WithClassifier(classifier),
		pipeline.WithDiffEngine(diff.New(diff.WithMaxClauses(a.maxClauses), diff.WithThreshold(a.threshold))),
		pipeline.WithChecklistGenerator(checklist.New(rules)),
		pipeline.WithMaxInFlight(a.maxInFlight),
		pipeline.WithLogger(a.logger),
	)
	return err
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// output returns where a command writes its result: the -o file when set,
// stdout otherwise. The returned close func must be called.
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
