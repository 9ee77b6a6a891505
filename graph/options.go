package graph

import (
	"time"

	"github.com/agentflow-dev/workflow/graph/emit"
	"github.com/agentflow-dev/workflow/graph/metrics"
)

// Clock abstracts wall-clock time so tests can control timestamps attached
// to checkpoints and emitted diagnostics without depending on real time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// workflowConfig holds the ambient collaborators a Workflow is built with:
// none of these affect routing or dispatch semantics, only diagnostics,
// persistence, and wire encoding (spec.md §9).
type workflowConfig struct {
	emitter emit.Emitter
	codec   Codec
	clock   Clock
	metrics metrics.Metrics
}

func newWorkflowConfig() *workflowConfig {
	return &workflowConfig{
		emitter: emit.NewNullEmitter(),
		codec:   JSONCodec{},
		clock:   systemClock{},
		metrics: metrics.NewNullMetrics(),
	}
}

// Option configures ambient Workflow collaborators at build time, matching
// the teacher's functional-options idiom.
type Option func(*workflowConfig) error

// WithEmitter attaches the internal diagnostic Emitter used for superstep
// and executor-invocation telemetry.
func WithEmitter(e emit.Emitter) Option {
	return func(c *workflowConfig) error {
		c.emitter = e
		return nil
	}
}

// WithCodec overrides the default JSONCodec used at checkpoint and
// diagnostic-logging boundaries.
func WithCodec(codec Codec) Option {
	return func(c *workflowConfig) error {
		c.codec = codec
		return nil
	}
}

// WithClock overrides the default wall-clock source.
func WithClock(clock Clock) Option {
	return func(c *workflowConfig) error {
		c.clock = clock
		return nil
	}
}

// WithMetrics attaches a Metrics collector that observes active executor
// counts, superstep latency, checkpoint outcomes, and convergence failures
// for every run of the built Workflow.
func WithMetrics(m metrics.Metrics) Option {
	return func(c *workflowConfig) error {
		c.metrics = m
		return nil
	}
}
