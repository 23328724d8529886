package ocr

import (
	"context"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/voucherscan/internal/segment"
)

// Aggregator recognizes an ordered region sequence and merges the results.
// A failing region contributes zero lines and never aborts the remaining
// regions.
type Aggregator struct {
	primary   Engine
	secondary Engine
	log       *slog.Logger
}

// AggregatorOption customizes an Aggregator.
type AggregatorOption func(*Aggregator)

// WithSecondPass adds a second recognition pass over the same regions with a
// differently configured engine.
func WithSecondPass(engine Engine) AggregatorOption {
	return func(a *Aggregator) { a.secondary = engine }
}

// WithLogger sets the logger for per-region failures.
func WithLogger(log *slog.Logger) AggregatorOption {
	return func(a *Aggregator) { a.log = log }
}

// NewAggregator creates an aggregator around the primary engine.
func NewAggregator(primary Engine, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{primary: primary, log: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Recognize runs the configured passes over the regions in order and returns
// every recognized line labeled with its region name. Regions must already
// be in their fixed processing order.
func (a *Aggregator) Recognize(ctx context.Context, regions []segment.Region) []Line {
	lines := a.runPass(ctx, a.primary, regions, "primary")
	if a.secondary != nil {
		lines = append(lines, a.runPass(ctx, a.secondary, regions, "secondary")...)
	}
	return lines
}

func (a *Aggregator) runPass(ctx context.Context, engine Engine, regions []segment.Region, pass string) []Line {
	var lines []Line
	for _, region := range regions {
		got, err := engine.Recognize(ctx, region.Image)
		if err != nil {
			a.log.Warn("region recognition failed",
				"pass", pass, "region", region.Name, "error", err)
			continue
		}
		for _, line := range got {
			line.Region = region.Name
			lines = append(lines, line)
		}
	}
	return lines
}

// Merger accumulates trimmed lines, dropping empties and exact repeats while
// preserving each value's first-seen position.
type Merger struct {
	seen map[string]struct{}
	out  []string
}

// NewMerger creates an empty merger.
func NewMerger() *Merger {
	return &Merger{seen: make(map[string]struct{})}
}

// Add folds more recognized lines into the merged sequence.
func (m *Merger) Add(lines ...Line) {
	for _, line := range lines {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		if _, dup := m.seen[text]; dup {
			continue
		}
		m.seen[text] = struct{}{}
		m.out = append(m.out, text)
	}
}

// Lines returns the merged sequence in first-seen order.
func (m *Merger) Lines() []string {
	return m.out
}

// MergeLines merges a single batch of lines.
func MergeLines(lines []Line) []string {
	m := NewMerger()
	m.Add(lines...)
	return m.Lines()
}
