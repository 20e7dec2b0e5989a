package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"mercator-hq/readbreak/pkg/engine"
	"mercator-hq/readbreak/pkg/expr"
	"mercator-hq/readbreak/pkg/fastq"
	"mercator-hq/readbreak/pkg/spec"
)

// DefaultPrefix names output files when Options.Prefix is empty.
const DefaultPrefix = "clipped"

// LoadOptions controls how a pipeline file is loaded.
type LoadOptions struct {
	// Strict rejects unknown step fields.
	Strict bool

	// MaxFileSize overrides the parser's size limit when positive.
	MaxFileSize int64

	// Cache receives templates compiled while loading globals.
	Cache *expr.Cache

	// Logger receives load progress.
	Logger *slog.Logger
}

// Pipeline is a parsed and validated pipeline with its loaded resources.
type Pipeline struct {
	Spec    *spec.Spec
	Globals *spec.Globals
}

// Load parses, validates and loads the resources of the pipeline at path.
func Load(path string, opts LoadOptions) (*Pipeline, error) {
	parser := spec.NewParser().WithStrictMode(opts.Strict)
	if opts.MaxFileSize > 0 {
		parser = parser.WithMaxFileSize(opts.MaxFileSize)
	}
	s, err := parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(s); err != nil {
		return nil, err
	}
	g, err := spec.LoadGlobals(s, spec.LoadOptions{Cache: opts.Cache, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	return &Pipeline{Spec: s, Globals: g}, nil
}

// Options configures a clipping run.
type Options struct {
	// SpecPath is the pipeline file.
	SpecPath string

	// R1 and R2 are the input FASTQ files, plain, gzip or zstd.
	R1 string
	R2 string

	// TrimTail cuts read identifiers at the first whitespace.
	TrimTail bool

	// OutDir and Prefix locate the clipped output files.
	OutDir string
	Prefix string

	// Compression and Level select the output codec.
	Compression fastq.Compression
	Level       int

	// ReportPath, when set, receives a JSON Lines verdict report.
	ReportPath string

	// FailedOnly limits the report to failing pairs.
	FailedOnly bool

	// Clip holds the coordinates used when the pipeline stores none.
	Clip ClipDefaults

	// Workers is the number of concurrent pipeline workers.
	Workers int

	// Strict rejects unknown step fields.
	Strict bool

	// MaxSpecSize caps the pipeline file size. Zero uses the parser
	// default.
	MaxSpecSize int64

	// Engine configures the pipeline engine. Nil uses defaults.
	Engine *engine.Config

	// State is the run state. Nil creates a fresh one.
	State *engine.RunState

	// Observers receive every verdict.
	Observers []engine.Observer
}

// Summary describes a finished run.
type Summary struct {
	RunID    string          `json:"run_id"`
	Pipeline string          `json:"pipeline"`
	Name     string          `json:"name,omitempty"`
	Commit   string          `json:"commit,omitempty"`
	Output1  string          `json:"output_r1"`
	Output2  string          `json:"output_r2"`
	Report   string          `json:"report,omitempty"`
	Written  int64           `json:"written"`
	Dropped  int64           `json:"dropped"`
	Duration time.Duration   `json:"duration_ns"`
	Log      engine.ParseLog `json:"parse_log"`
}

// Run clips every passing pair of the input files into the output
// directory.
func Run(ctx context.Context, opts Options, logger *slog.Logger) (sum *Summary, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Compression == "" {
		opts.Compression = fastq.CompressionGzip
	}
	if opts.Level == 0 {
		opts.Level = fastq.DefaultGzipLevel
	}
	state := opts.State
	if state == nil {
		state = engine.NewRunState()
	}
	start := time.Now()
	logger = logger.With("component", "runner", "run_id", state.ID)

	p, err := Load(opts.SpecPath, LoadOptions{Strict: opts.Strict, MaxFileSize: opts.MaxSpecSize, Cache: state.Cache, Logger: logger})
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(p.Spec, p.Globals, state, opts.Engine, logger)
	if err != nil {
		return nil, err
	}
	for _, o := range opts.Observers {
		eng.AddObserver(o)
	}

	reader, err := fastq.OpenPaired(opts.R1, opts.R2, fastq.WithTrimTail(opts.TrimTail))
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer func() { err = errors.Join(err, reader.Close()) }()

	if err := os.MkdirAll(opts.OutDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	writer, err := fastq.CreatePaired(opts.OutDir, opts.Prefix, opts.Compression, opts.Level)
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}
	defer func() { err = errors.Join(err, writer.Close()) }()

	clip := NewClipSink(writer, opts.Clip)
	sinks := MultiSink{clip}
	if opts.ReportPath != "" {
		f, ferr := os.Create(opts.ReportPath)
		if ferr != nil {
			return nil, fmt.Errorf("creating report: %w", ferr)
		}
		report := NewReportSink(f, opts.FailedOnly)
		defer func() { err = errors.Join(err, report.Flush(), f.Close()) }()
		sinks = append(sinks, report)
	}

	logger.Info("processing reads",
		"pipeline", opts.SpecPath,
		"r1", opts.R1,
		"r2", opts.R2,
		"out", opts.OutDir,
		"workers", opts.Workers)

	if err := eng.Process(ctx, NewFastqSource(reader), sinks, opts.Workers); err != nil {
		return nil, err
	}

	sum = &Summary{
		RunID:    state.ID,
		Pipeline: opts.SpecPath,
		Name:     p.Spec.Name,
		Output1:  writer.Path1,
		Output2:  writer.Path2,
		Report:   opts.ReportPath,
		Written:  clip.Written(),
		Dropped:  clip.Dropped(),
		Duration: time.Since(start),
		Log:      eng.Stats().Snapshot(),
	}
	logger.Info("processing complete",
		"total_reads", sum.Log.TotalReads,
		"successful_reads", sum.Log.SuccessfulReads,
		"failed_reads", sum.Log.FailedReads,
		"success_rate", sum.Log.SuccessRate,
		"duration", sum.Duration)
	return sum, nil
}
