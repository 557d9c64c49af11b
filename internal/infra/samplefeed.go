package infra

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_engine/internal/domain"
)

// feedLine is the wire shape the OS bridge writes, one JSON object per line.
type feedLine struct {
	Title       string `json:"title"`
	OwnerName   string `json:"ownerName"`
	OwnerPath   string `json:"ownerPath"`
	TimestampMs int64  `json:"timestamp,omitempty"`
}

// JSONLSampleFeed implements domain.SampleSource by decoding newline-
// delimited JSON window samples from a reader (stdin or a FIFO written by
// the external OS bridge). The actual window sampler stays out of process.
type JSONLSampleFeed struct {
	reader io.Reader
	clock  domain.Clock
	logger *zap.Logger
}

// NewJSONLSampleFeed creates a feed over r.
func NewJSONLSampleFeed(r io.Reader, clock domain.Clock, logger *zap.Logger) *JSONLSampleFeed {
	return &JSONLSampleFeed{reader: r, clock: clock, logger: logger}
}

// Run decodes samples into out until ctx is cancelled or the reader is
// exhausted. Malformed lines are logged and skipped, never fatal.
func (f *JSONLSampleFeed) Run(ctx context.Context, out chan<- domain.WindowSample) error {
	scanner := bufio.NewScanner(f.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var wire feedLine
		if err := json.Unmarshal(line, &wire); err != nil {
			f.logger.Warn("skipping malformed sample line", zap.Error(err))
			continue
		}

		ts := f.clock.Now()
		if wire.TimestampMs > 0 {
			ts = time.UnixMilli(wire.TimestampMs)
		}

		sample := domain.WindowSample{
			Title:     wire.Title,
			OwnerName: wire.OwnerName,
			OwnerPath: wire.OwnerPath,
			Timestamp: ts,
		}

		select {
		case out <- sample:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	f.logger.Info("sample feed exhausted")
	return nil
}

// Ensure JSONLSampleFeed implements domain.SampleSource.
var _ domain.SampleSource = (*JSONLSampleFeed)(nil)
