// Package pipeline sequences the download and thumbnail stages.
//
// Run is a strict barrier pipeline: the transform stage starts only after
// every download has finished or failed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aliskhannn/thumbnailer/internal/batch"
	"github.com/aliskhannn/thumbnailer/internal/model"
)

// Handoff selects how the transform stage learns which images to process.
type Handoff string

const (
	// HandoffScan lists the images directory after all downloads completed.
	HandoffScan Handoff = "scan"

	// HandoffList passes exactly the images the fetch stage produced.
	HandoffList Handoff = "list"
)

var ErrUnknownHandoff = errors.New("unknown handoff mode")

// ParseHandoff validates a handoff mode name. An empty name selects HandoffScan.
func ParseHandoff(s string) (Handoff, error) {
	switch Handoff(s) {
	case "", HandoffScan:
		return HandoffScan, nil
	case HandoffList:
		return HandoffList, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownHandoff, s)
	}
}

// imageFetcher defines the interface for the download stage.
type imageFetcher interface {
	Fetch(ctx context.Context, urls []string) ([]model.StoredImage, error)
}

// imageTransformer defines the interface for the thumbnail stage.
type imageTransformer interface {
	Prepare() error
	Scan(ctx context.Context) ([]model.StoredImage, error)
	Transform(ctx context.Context, images []model.StoredImage) ([]model.ProcessedImage, error)
}

// Options configures the pipeline.
type Options struct {
	Handoff Handoff

	// ContinueOnError runs the transform stage over the images that were
	// downloaded even if some downloads failed. Failures that stop the fetch
	// stage as a whole (invalid sources, unusable store) still abort the run.
	ContinueOnError bool
}

// Report summarizes a pipeline run.
type Report struct {
	RunID     uuid.UUID
	Stored    []model.StoredImage
	Processed []model.ProcessedImage
	Elapsed   time.Duration
}

// Pipeline runs the fetch stage, waits for it, then runs the transform stage.
type Pipeline struct {
	fetcher     imageFetcher
	transformer imageTransformer
	logger      zerolog.Logger
	opts        Options
}

// New creates a new Pipeline.
func New(f imageFetcher, t imageTransformer, logger zerolog.Logger, opts Options) *Pipeline {
	if opts.Handoff == "" {
		opts.Handoff = HandoffScan
	}

	return &Pipeline{
		fetcher:     f,
		transformer: t,
		logger:      logger,
		opts:        opts,
	}
}

// Run downloads urls, then thumbnails the stored images, and reports the
// elapsed wall-clock time. With ContinueOnError a failed stage does not stop
// the run; the stage errors are joined and returned with the report.
func (p *Pipeline) Run(ctx context.Context, urls []string) (Report, error) {
	start := time.Now()
	report := Report{RunID: uuid.New()}
	logger := p.logger.With().Str("run_id", report.RunID.String()).Logger()

	logger.Info().Int("sources", len(urls)).Msg("fetch stage started")

	stored, fetchErr := p.fetcher.Fetch(ctx, urls)
	report.Stored = stored
	if fetchErr != nil {
		var itemErrs *batch.Error
		if !p.opts.ContinueOnError || !errors.As(fetchErr, &itemErrs) {
			report.Elapsed = time.Since(start)
			return report, fmt.Errorf("fetch stage: %w", fetchErr)
		}
		logger.Error().Err(fetchErr).Msg("fetch stage finished with failures")
	}

	logger.Info().Int("stored", len(stored)).Msg("fetch stage done")

	if err := p.transformer.Prepare(); err != nil {
		report.Elapsed = time.Since(start)
		return report, errors.Join(wrapStage("fetch", fetchErr), err)
	}

	images := stored
	if p.opts.Handoff == HandoffScan {
		scanned, err := p.transformer.Scan(ctx)
		if err != nil {
			report.Elapsed = time.Since(start)
			return report, errors.Join(wrapStage("fetch", fetchErr), fmt.Errorf("scan: %w", err))
		}
		images = scanned
	}

	logger.Info().
		Int("images", len(images)).
		Str("handoff", string(p.opts.Handoff)).
		Msg("transform stage started")

	processed, transformErr := p.transformer.Transform(ctx, images)
	report.Processed = processed
	report.Elapsed = time.Since(start)

	logger.Info().
		Int("processed", len(processed)).
		Dur("elapsed", report.Elapsed).
		Msg("transform stage done")

	return report, errors.Join(wrapStage("fetch", fetchErr), wrapStage("transform", transformErr))
}

func wrapStage(stage string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s stage: %w", stage, err)
}
