// File: cmd/evolve.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/config"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/fsstore"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/journal"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/novelty"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/observability"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/oracle"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/orchestrator"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/review"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/vcs"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/verifier"
)

// newEvolveCmd creates the 'evolve' command. A single invocation either runs
// a fixed number of mutation cycles (--once / --cycles) or starts the
// interval scheduler and blocks until interrupted.
func newEvolveCmd() *cobra.Command {
	var (
		once    bool
		cycles  int
		targets []string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "evolve",
		Short: "Runs gated self-mutation cycles against the configured target files.",
		Long: `The evolve command drives the mutation pipeline: an oracle proposes an edit,
which must then survive fuzzy matching, a novelty check, an independent dual
review, and formal verification before it is committed atomically.
WARNING: This process modifies the configured target files. Ensure they are
under version control.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := appCfg
			if cfg == nil {
				return errors.New("configuration was not initialized")
			}

			if len(targets) > 0 {
				cfg.Evolution.TargetFiles = targets
			}
			cfg.Evolution.DryRun = cfg.Evolution.DryRun || dryRun
			if err := cfg.Validate(); err != nil {
				return err
			}

			if once {
				cycles = 1
			}
			// --once reflects the cycle outcome in the exit status.
			return runEvolve(ctx, cfg, logger, cycles, once)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run exactly one cycle and exit.")
	cmd.Flags().IntVar(&cycles, "cycles", 0, "Run N cycles and exit (0 = run the scheduler until interrupted).")
	cmd.Flags().StringSliceVarP(&targets, "targets", "t", nil, "Target files (overrides evolution.target_files).")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run the full gate sequence but never write.")

	return cmd
}

// onceOutcomeErr maps a cycle outcome to the --once exit status: only a
// committed or dry-run cycle exits zero.
func onceOutcomeErr(outcome schemas.CycleOutcome) error {
	switch outcome {
	case schemas.OutcomeCommitted, schemas.OutcomeDryRun:
		return nil
	default:
		return fmt.Errorf("cycle finished without a commit: %s", outcome)
	}
}

// runEvolve wires the pipeline and runs it. It is decoupled from cobra and
// accepts all dependencies via cfg. With strict set, the outcome of the final
// cycle decides the returned error.
func runEvolve(ctx context.Context, cfg *config.Config, logger *zap.Logger, cycles int, strict bool) error {
	router, err := oracle.NewRouter(ctx, cfg.Oracle, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize oracle router: %w", err)
	}

	gate, err := review.NewGate(logger, router.Proposer(), router.Evaluator(), review.Options{
		ScoreFloor: cfg.Evolution.ReviewScoreFloor,
		Timeout:    cfg.Evolution.OracleTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize review gate: %w", err)
	}

	archive := novelty.NewArchive(logger, novelty.Options{
		Capacity:      cfg.Archive.Capacity,
		KNeighbors:    cfg.Archive.KNeighbors,
		FitnessWeight: cfg.Evolution.FitnessWeight,
		NoveltyWeight: cfg.Evolution.NoveltyWeight,
	})
	if cfg.Archive.Path != "" {
		archive.Load(cfg.Archive.Path)
	}

	jrnl := journal.New(logger, cfg.Journal.Path, cfg.Journal.MaxEntries)
	jrnl.Load()

	var committer orchestrator.MutationCommitter
	if cfg.VCS.Enabled {
		committer = vcs.NewCommitter(logger, cfg.VCS)
	}

	orch, err := orchestrator.New(logger, cfg.Evolution, orchestrator.Deps{
		Store:    fsstore.New(),
		Proposer: router.Proposer(),
		Gate:     gate,
		Verifier: verifier.New(logger, verifier.Options{
			FunctionCountFloor: cfg.Evolution.FunctionCountFloor,
			SizeDeltaBound:     cfg.Evolution.SizeDeltaBound,
		}),
		Archive:     archive,
		Journal:     jrnl,
		Committer:   committer,
		ArchivePath: cfg.Archive.Path,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	if cycles > 0 {
		for i := 0; i < cycles; i++ {
			before := jrnl.Len()
			entry, err := orch.RunOneCycle(ctx)
			if err != nil {
				return err
			}
			if entry != nil {
				logger.Info("Cycle finished.",
					zap.Int("n", i+1),
					zap.String("outcome", string(entry.Outcome)),
					zap.String("file", filepath.Base(entry.File)),
				)
			}
			if strict && i == cycles-1 {
				// A nil entry may still have journaled its outcome.
				switch {
				case entry != nil:
					return onceOutcomeErr(entry.Outcome)
				case jrnl.Len() > before:
					entries := jrnl.Entries()
					return onceOutcomeErr(entries[len(entries)-1].Outcome)
				default:
					return errors.New("cycle recorded no outcome")
				}
			}
			if ctx.Err() != nil {
				return nil
			}
		}
		return nil
	}

	if cfg.Watcher.Enabled {
		watcher, err := orchestrator.NewWatcher(logger, cfg.Watcher, orch, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize weakness watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
	}

	sched := orchestrator.NewScheduler(logger, orch, nil)
	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
