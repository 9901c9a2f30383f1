package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/nearby/internal/db"
	"github.com/kailas-cloud/nearby/internal/domain/batch"
	"github.com/kailas-cloud/nearby/internal/domain/event"
)

const (
	defaultReplayBatch = 500
	maxLineBytes       = 1 << 20
)

// batchApplier applies a batch of events. Implemented by projection.Service.
type batchApplier interface {
	ApplyBatch(ctx context.Context, events []event.Event) []batch.Result
}

// replayStats counts outcomes of one replay run.
type replayStats struct {
	Lines    int
	Applied  int
	Stale    int
	Conflict int
	Invalid  int
	Failed   int
}

func (s replayStats) String() string {
	return fmt.Sprintf("lines=%d applied=%d stale=%d conflict=%d invalid=%d failed=%d",
		s.Lines, s.Applied, s.Stale, s.Conflict, s.Invalid, s.Failed)
}

type replayOptions struct {
	file      string
	reset     bool
	batchSize int
	strict    bool
}

func newReplayCmd(g *globalOptions) *cobra.Command {
	var opts replayOptions

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply a JSONL event log to the index",
		Long: `Apply a JSONL event log (one envelope per line) to the index.

With --reset the index is wiped first, which rebuilds the materialized view
from scratch. Replaying the same log twice is a no-op: already applied events
are reported as stale.

Examples:
  nearbyctl replay --file events.jsonl --reset
  cat events.jsonl | nearbyctl replay --file -`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReplay(cmd, g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Event log path, - for stdin")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "Wipe every row and sequence before replaying")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", defaultReplayBatch, "Events applied per batch (at most sync.max_batch_size)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero when any event is invalid or failed")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runReplay(cmd *cobra.Command, g *globalOptions, opts replayOptions) error {
	ctx := cmd.Context()

	in, closeIn, err := openInput(cmd, opts.file)
	if err != nil {
		return err
	}
	defer closeIn()

	a, logger, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.reset {
		r, ok := a.Store.(db.Resetter)
		if !ok {
			return errors.New("store does not support reset")
		}
		if err := r.Reset(ctx); err != nil {
			return fmt.Errorf("reset index: %w", err)
		}
		a.Sync.Forget()
		logger.Info("index reset")
	}

	stats, err := replay(ctx, in, a.Sync, opts.batchSize, logger)
	fmt.Fprintln(cmd.OutOrStdout(), stats)
	if err != nil {
		return err
	}
	if opts.strict && stats.Invalid+stats.Failed > 0 {
		return fmt.Errorf("%d events invalid, %d failed", stats.Invalid, stats.Failed)
	}
	return nil
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open event log: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// replay streams r line by line and applies events in batches of batchSize.
// Invalid lines are counted and skipped. Blank lines and lines starting with # are ignored.
func replay(
	ctx context.Context, r io.Reader, applier batchApplier, batchSize int, logger *zap.Logger,
) (replayStats, error) {
	if batchSize <= 0 {
		batchSize = defaultReplayBatch
	}
	var stats replayStats
	pending := make([]event.Event, 0, batchSize)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		for _, res := range applier.ApplyBatch(ctx, pending) {
			switch res.Status() {
			case batch.StatusApplied:
				stats.Applied++
			case batch.StatusStale:
				stats.Stale++
			case batch.StatusConflict:
				stats.Conflict++
			default:
				stats.Failed++
				logger.Warn("event failed",
					zap.String("provider_id", res.ID()),
					zap.Int64("sequence", res.Sequence()),
					zap.Error(res.Err()),
				)
			}
		}
		pending = pending[:0]
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Lines++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := event.Decode([]byte(line))
		if err != nil {
			stats.Invalid++
			logger.Warn("invalid event", zap.Int("line", stats.Lines), zap.Error(err))
			continue
		}
		pending = append(pending, e)
		if len(pending) == batchSize {
			flush()
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read event log: %w", err)
	}
	flush()
	return stats, nil
}
