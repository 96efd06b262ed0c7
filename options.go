package otree

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/otree/block"
	"github.com/hupe1980/otree/codec"
	"github.com/hupe1980/otree/keeper"
	"github.com/hupe1980/otree/resource"
	"github.com/hupe1980/otree/space"
	"github.com/hupe1980/otree/txlog"
)

// DefaultDesiredCubeSize is the target maximum rows per cube when no
// override is configured.
const DefaultDesiredCubeSize = 100_000

type options struct {
	columns          []space.Transformer
	desiredCubeSize  int
	optimizeCubeSize int // 0 means same as desiredCubeSize
	commitRetries    int
	workers          int
	codec            codec.Codec
	compression      block.Compression
	keeper           keeper.Keeper
	resources        resource.Config
	logger           *Logger
}

// Option configures OTree constructor behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. codec-specific constructor variants).
type Option func(*options)

// WithColumns declares the indexed columns in dimension order. Required
// for indexed writes; a table used only through Convert can omit it.
//
// Column order is part of the index layout: changing it later is a
// configuration error.
func WithColumns(columns ...space.Transformer) Option {
	return func(o *options) {
		o.columns = columns
	}
}

// WithDesiredCubeSize configures the target maximum rows per cube.
// Values below 1 fall back to DefaultDesiredCubeSize.
func WithDesiredCubeSize(size int) Option {
	return func(o *options) {
		o.desiredCubeSize = size
	}
}

// WithOptimizeCubeSize overrides the cube size used by optimize passes
// only. Useful to rebalance into finer cubes than the write path
// targets. Zero keeps the write-path size.
func WithOptimizeCubeSize(size int) Option {
	return func(o *options) {
		o.optimizeCubeSize = size
	}
}

// WithCommitRetries bounds the optimistic retry loop of each commit.
// Negative values fall back to txlog.DefaultMaxRetries.
func WithCommitRetries(retries int) Option {
	return func(o *options) {
		o.commitRetries = retries
	}
}

// WithWorkers configures the number of routing workers.
// Defaults to runtime.GOMAXPROCS(0).
func WithWorkers(workers int) Option {
	return func(o *options) {
		o.workers = workers
	}
}

// WithCodec configures the codec used for block payloads and metadata.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression selects the block payload compression.
func WithCompression(c block.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithKeeper configures the announcement coordination service. Defaults
// to an in-process keeper, which is only safe for a single writer
// process.
func WithKeeper(k keeper.Keeper) Option {
	return func(o *options) {
		if k != nil {
			o.keeper = k
		}
	}
}

// WithResourceConfig configures background-job and IO limits applied to
// optimize passes.
func WithResourceConfig(cfg resource.Config) Option {
	return func(o *options) {
		o.resources = cfg
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		desiredCubeSize: DefaultDesiredCubeSize,
		commitRetries:   txlog.DefaultMaxRetries,
		workers:         runtime.GOMAXPROCS(0),
		codec:           codec.Default,
		compression:     block.CompressionZstd,
		keeper:          keeper.NewLocalKeeper(),
		logger:          NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.desiredCubeSize < 1 {
		o.desiredCubeSize = DefaultDesiredCubeSize
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return o
}
