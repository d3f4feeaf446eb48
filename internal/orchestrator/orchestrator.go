// File: internal/orchestrator/orchestrator.go
// Description: Drives the mutation pipeline. A cycle obtains a candidate edit
// from the proposer oracle, runs it through the matcher, the confidence and
// novelty gates, the dual review, and the formal verifier, and on full
// approval performs the atomic backup-write-reverify commit. Every terminal
// transition is journaled; the journal is the system's only visible surface.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/config"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/features"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/journal"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/novelty"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/patcher"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/review"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/verifier"
)

// State labels a position in the per-cycle state machine. A cycle only moves
// forward through these states or drops to StateRejected.
type State string

const (
	StateIdle               State = "IDLE"
	StateCandidateRequested State = "CANDIDATE_REQUESTED"
	StateMatched            State = "MATCHED"
	StateNoveltyScored      State = "NOVELTY_SCORED"
	StateDualReviewed       State = "DUAL_REVIEWED"
	StateVerified           State = "VERIFIED"
	StateCommitted          State = "COMMITTED"
	StateRejected           State = "REJECTED"
)

// MutationCommitter is the optional VCS trail for committed mutations.
type MutationCommitter interface {
	RecordMutation(file, description string) (string, error)
}

// Orchestrator owns the pipeline stages and the stores. The archive and the
// journal are injected so multiple instances (e.g. under test) never share
// hidden state.
type Orchestrator struct {
	logger      *zap.Logger
	cfg         config.EvolutionConfig
	store       schemas.FileStore
	proposer    schemas.Oracle
	gate        *review.Gate
	verifier    *verifier.Verifier
	patcher     *patcher.Patcher
	extractor   *features.Extractor
	archive     *novelty.Archive
	journal     *journal.Journal
	committer   MutationCommitter // nil when the VCS trail is disabled
	archivePath string

	cycle atomic.Uint64

	// locks serializes mutation per target file. Side-cycles may touch
	// different files concurrently, never the same file twice.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// rotation index over the configured target files for main cycles.
	rotation atomic.Uint64

	// repairQueue receives weak-spot targets from the weakness watcher.
	repairQueue chan string
}

// Deps bundles the orchestrator's collaborators. All fields except Committer
// and ArchivePath are required.
type Deps struct {
	Store    schemas.FileStore
	Proposer schemas.Oracle
	Gate     *review.Gate
	Verifier *verifier.Verifier
	Archive  *novelty.Archive
	Journal  *journal.Journal
	// Committer, when non-nil, records each committed mutation in git.
	Committer MutationCommitter
	// ArchivePath, when set, is where the archive snapshot is saved after
	// each committed mutation.
	ArchivePath string
}

// New creates an Orchestrator with its dependencies provided via interfaces.
func New(logger *zap.Logger, cfg config.EvolutionConfig, deps Deps) (*Orchestrator, error) {
	if len(cfg.TargetFiles) == 0 {
		return nil, errors.New("at least one target file is required")
	}
	if deps.Store == nil || deps.Proposer == nil || deps.Gate == nil ||
		deps.Verifier == nil || deps.Archive == nil || deps.Journal == nil {
		return nil, errors.New("cannot initialize orchestrator with nil dependencies")
	}

	return &Orchestrator{
		logger:      logger.Named("orchestrator"),
		cfg:         cfg,
		store:       deps.Store,
		proposer:    deps.Proposer,
		gate:        deps.Gate,
		verifier:    deps.Verifier,
		patcher:     patcher.New(cfg.MinAnchorLength),
		extractor:   features.New(),
		archive:     deps.Archive,
		journal:     deps.Journal,
		committer:   deps.Committer,
		archivePath: deps.ArchivePath,
		locks:       make(map[string]*sync.Mutex),
		repairQueue: make(chan string, 16),
	}, nil
}

// RunOneCycle advances the pipeline once against the next rotation target.
// It returns nil when no candidate could be obtained or matched; every
// terminal transition, including those, is journaled regardless. The only
// error it returns is a failed backup restoration after a failed commit.
func (o *Orchestrator) RunOneCycle(ctx context.Context) (*schemas.EvolutionLogEntry, error) {
	return o.runCycleForFile(ctx, o.nextTarget(), framingImprove)
}

// nextTarget rotates over the configured target files.
func (o *Orchestrator) nextTarget() string {
	n := o.rotation.Add(1) - 1
	return o.cfg.TargetFiles[int(n)%len(o.cfg.TargetFiles)]
}

// fileLock returns the mutex guarding a target file, creating it on first use.
func (o *Orchestrator) fileLock(file string) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()
	if l, ok := o.locks[file]; ok {
		return l
	}
	l := &sync.Mutex{}
	o.locks[file] = l
	return l
}

// runCycleForFile is the full gate sequence for one file. The per-file lock
// covers the whole cycle, so at most one mutation is ever in flight for a
// given file.
func (o *Orchestrator) runCycleForFile(ctx context.Context, file string, fr framing) (*schemas.EvolutionLogEntry, error) {
	lock := o.fileLock(file)
	if !lock.TryLock() {
		o.logger.Debug("Target already has a mutation in flight; skipping cycle.", zap.String("file", file))
		return nil, nil
	}
	defer lock.Unlock()

	cycle := o.cycle.Add(1)
	state := StateIdle
	log := o.logger.With(zap.Uint64("cycle", cycle), zap.String("file", file), zap.String("framing", string(fr)))
	advance := func(next State) {
		log.Debug("State transition.", zap.String("from", string(state)), zap.String("to", string(next)))
		state = next
	}

	// A transient read failure abandons this cycle only; the next scheduled
	// cycle retries the target.
	original, err := o.store.Read(file)
	if err != nil {
		log.Error("Failed to read target; abandoning cycle.", zap.Error(err))
		return nil, nil
	}
	originalText := string(original)

	advance(StateCandidateRequested)
	candidate, err := o.requestCandidate(ctx, file, originalText, fr)
	if err != nil {
		advance(StateRejected)
		outcome := schemas.OutcomeNoCandidate
		if errors.Is(err, errOracleFailed) {
			outcome = schemas.OutcomeOracleFailed
		}
		o.journalEntry(cycle, file, "candidate acquisition failed", 0, 0, err.Error(), outcome)
		return nil, nil
	}
	log = log.With(zap.String("candidate", candidate.ID))

	if candidate.Confidence < o.cfg.ConfidenceCutoff {
		advance(StateRejected)
		log.Info("Candidate below confidence cutoff.", zap.Float64("confidence", candidate.Confidence))
		return o.journalEntry(cycle, file, candidate.Description, candidate.Confidence, 0, "", schemas.OutcomeLowConfidence), nil
	}

	match := o.patcher.Locate(originalText, candidate.Search)
	if !match.Found {
		advance(StateRejected)
		log.Info("Candidate search text not found in target.")
		o.journalEntry(cycle, file, candidate.Description, candidate.Confidence, 0, "", schemas.OutcomeNoMatch)
		return nil, nil
	}
	advance(StateMatched)
	log.Debug("Snippet located.", zap.String("strategy", string(match.Strategy)), zap.Int("offset", match.ByteOffset))

	mutatedText := patcher.Apply(originalText, match, candidate.Replace)

	featureVec := o.extractor.Extract(mutatedText)
	noveltyScore := o.archive.Novelty(featureVec)
	if noveltyScore < o.cfg.NoveltyFloor {
		advance(StateRejected)
		log.Info("Candidate rejected as structurally repetitive.", zap.Float64("novelty", noveltyScore))
		return o.journalEntry(cycle, file, candidate.Description, candidate.Confidence, noveltyScore, "", schemas.OutcomeLowNovelty), nil
	}
	advance(StateNoveltyScored)

	verdict := o.gate.Review(ctx, candidate, originalText)
	if !verdict.Approved {
		advance(StateRejected)
		return o.journalEntry(cycle, file, candidate.Description, candidate.Confidence, noveltyScore,
			fmt.Sprintf("review score %.1f", verdict.Score), schemas.OutcomeReviewRejected), nil
	}
	advance(StateDualReviewed)

	report := o.verifier.Verify(originalText, mutatedText, file)
	if !report.Pass {
		advance(StateRejected)
		log.Info("Verification failed.", zap.String("summary", report.Summary()))
		return o.journalEntry(cycle, file, candidate.Description, candidate.Confidence, noveltyScore,
			report.Summary(), schemas.OutcomeVerificationFailed), nil
	}
	advance(StateVerified)

	fitness := 0.5*candidate.Confidence + 0.5*(verdict.Score/10.0)

	if o.cfg.DryRun {
		advance(StateRejected)
		log.Info("Dry run; stopping before commit.")
		return o.journalEntry(cycle, file, candidate.Description, fitness, noveltyScore,
			report.Summary(), schemas.OutcomeDryRun), nil
	}

	// A cancellation before COMMITTED abandons the mutation and leaves the
	// file at its last committed state.
	if ctx.Err() != nil {
		advance(StateRejected)
		return o.journalEntry(cycle, file, candidate.Description, fitness, noveltyScore,
			"cancelled before commit", schemas.OutcomeCommitFailed), nil
	}

	if err := o.commit(file, mutatedText); err != nil {
		advance(StateRejected)
		entry := o.journalEntry(cycle, file, candidate.Description, fitness, noveltyScore,
			err.Error(), schemas.OutcomeCommitFailed)
		var rf *restoreFailure
		if errors.As(err, &rf) {
			// Restoration failure is the one unrecoverable condition.
			return entry, err
		}
		return entry, nil
	}
	advance(StateCommitted)

	o.archive.Add(featureVec, fitness, map[string]string{
		"file":     file,
		"category": candidate.Category,
		"provider": candidate.OriginProvider,
	})
	if o.archivePath != "" {
		if err := o.archive.Save(o.archivePath); err != nil {
			log.Warn("Failed to persist novelty archive.", zap.Error(err))
		}
	}

	if o.committer != nil {
		if _, err := o.committer.RecordMutation(file, candidate.Description); err != nil {
			log.Warn("Failed to record mutation in git.", zap.Error(err))
		}
	}

	log.Info("Mutation committed.",
		zap.Float64("fitness", fitness),
		zap.Float64("novelty", noveltyScore),
		zap.String("strategy", string(match.Strategy)),
	)
	return o.journalEntry(cycle, file, candidate.Description, fitness, noveltyScore,
		report.Summary(), schemas.OutcomeCommitted), nil
}

// restoreFailure marks the unrecoverable case: the commit failed AND the
// backup could not be restored.
type restoreFailure struct {
	file       string
	commitErr  error
	restoreErr error
}

func (e *restoreFailure) Error() string {
	return fmt.Sprintf("commit of %s failed (%v) and backup restoration failed (%v); file may be inconsistent",
		e.file, e.commitErr, e.restoreErr)
}

// commit is the double-checked commit sequence: durable backup, atomic write,
// and a re-parse of the file as it actually landed on disk. A re-parse
// failure restores the backup and rejects the mutation.
func (o *Orchestrator) commit(file, mutatedText string) error {
	if _, err := o.store.Backup(file); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	if err := o.store.Write(file, []byte(mutatedText)); err != nil {
		return o.restoreAfter(file, fmt.Errorf("write failed: %w", err))
	}

	written, err := o.store.Read(file)
	if err != nil {
		return o.restoreAfter(file, fmt.Errorf("post-write read failed: %w", err))
	}
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, file, written, parser.AllErrors); err != nil {
		return o.restoreAfter(file, fmt.Errorf("post-write re-parse failed: %w", err))
	}
	return nil
}

// restoreAfter rolls the target back to the backup taken at the start of the
// commit. A failed restoration escalates instead of being swallowed.
func (o *Orchestrator) restoreAfter(file string, commitErr error) error {
	if restoreErr := o.store.Restore(file); restoreErr != nil {
		err := &restoreFailure{file: file, commitErr: commitErr, restoreErr: restoreErr}
		o.logger.Error("UNRECOVERABLE: backup restoration failed after commit failure.",
			zap.String("file", file),
			zap.NamedError("commit_error", commitErr),
			zap.NamedError("restore_error", restoreErr),
		)
		return err
	}
	o.logger.Warn("Commit failed; target restored from backup.", zap.String("file", file), zap.Error(commitErr))
	return commitErr
}

// journalEntry persists one terminal transition unconditionally. Journal
// write failures are logged but never alter the pipeline's outcome.
func (o *Orchestrator) journalEntry(cycle uint64, file, description string, fitness, noveltyScore float64, summary string, outcome schemas.CycleOutcome) *schemas.EvolutionLogEntry {
	entry := schemas.EvolutionLogEntry{
		ID:                  uuid.New().String(),
		Cycle:               cycle,
		File:                file,
		Description:         description,
		FitnessScore:        fitness,
		NoveltyScore:        noveltyScore,
		VerificationSummary: summary,
		Outcome:             outcome,
		Timestamp:           time.Now().UTC(),
	}
	if err := o.journal.Append(entry); err != nil {
		o.logger.Warn("Failed to persist evolution log entry.", zap.Error(err), zap.String("outcome", string(outcome)))
	}
	return &entry
}
