// File: internal/orchestrator/watcher.go
// Description: The weakness watcher tails the application log for error and
// panic lines, extracts the implicated source file, and queues it for a
// repair side-cycle. Detection is advisory only; a queued target still goes
// through the full gate sequence.

package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/config"
)

var (
	weaknessLevelRegex = regexp.MustCompile(`("level":"(error|panic|fatal)"|\bERROR\b|\bFATAL\b|panic:)`)
	weaknessFileRegex  = regexp.MustCompile(`([\w./\\-]+\.go)(:\d+)?`)
)

// Watcher monitors the application log for weak spots.
type Watcher struct {
	logger  *zap.Logger
	cfg     config.WatcherConfig
	orch    *Orchestrator
	// debounce suppresses repeated detections of the same file in a burst.
	debounce time.Duration
	lastSeen map[string]time.Time
	clock    Clock
}

// NewWatcher wires the watcher to an orchestrator's repair queue.
func NewWatcher(logger *zap.Logger, cfg config.WatcherConfig, orch *Orchestrator, clock Clock) (*Watcher, error) {
	if cfg.LogPath == "" {
		return nil, fmt.Errorf("watcher.log_path must be configured for weakness detection")
	}
	if clock == nil {
		clock = RealClock()
	}
	return &Watcher{
		logger:   logger.Named("watcher"),
		cfg:      cfg,
		orch:     orch,
		debounce: 1 * time.Minute,
		lastSeen: make(map[string]time.Time),
		clock:    clock,
	}, nil
}

// Start begins tailing the log in a separate goroutine. The goroutine exits
// when ctx is cancelled or the tailer's line channel closes.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("Starting weakness watcher.", zap.String("log", w.cfg.LogPath))

	t, err := tail.TailFile(w.cfg.LogPath, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: 2},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail application log: %w", err)
	}

	go w.monitorLoop(ctx, t)
	return nil
}

func (w *Watcher) monitorLoop(ctx context.Context, t *tail.Tail) {
	defer func() {
		t.Stop()
		t.Cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping weakness watcher.")
			return
		case line, ok := <-t.Lines:
			if !ok {
				w.logger.Info("Log tailer channel closed.")
				return
			}
			if line.Err != nil {
				w.logger.Warn("Error reading log line.", zap.Error(line.Err))
				continue
			}
			w.handleLine(line.Text)
		}
	}
}

// handleLine checks one log line for an error-level entry naming a Go file.
func (w *Watcher) handleLine(text string) {
	if !weaknessLevelRegex.MatchString(text) {
		return
	}
	m := weaknessFileRegex.FindStringSubmatch(text)
	if m == nil {
		return
	}
	file := m[1]

	now := w.clock.Now()
	if seen, ok := w.lastSeen[file]; ok && now.Sub(seen) < w.debounce {
		return
	}
	w.lastSeen[file] = now

	w.logger.Info("Weak spot detected in log.", zap.String("file", file))
	w.orch.EnqueueRepair(file)
}
