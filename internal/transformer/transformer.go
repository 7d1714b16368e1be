package transformer

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/aliskhannn/thumbnailer/internal/batch"
	"github.com/aliskhannn/thumbnailer/internal/model"
)

// imageProcessor defines the interface for transforming a single stored image.
type imageProcessor interface {
	Process(ctx context.Context, img model.StoredImage) (model.ProcessedImage, error)
}

// fileStorage defines the interface for directory bookkeeping.
type fileStorage interface {
	EnsureDir(dir string) error
	List(dir, ext string) ([]string, error)
	Join(elem ...string) string
}

// Options configures the Transformer.
type Options struct {
	// Workers is the number of images transformed at once.
	// Default and upper bound: runtime.NumCPU().
	Workers int

	// InputDir holds the stored images.
	InputDir string

	// OutputDir receives the thumbnails.
	OutputDir string

	// FailFast aborts the remaining transforms on the first failure.
	FailFast bool
}

// Transformer runs the processor over a set of stored images in parallel.
type Transformer struct {
	processor   imageProcessor
	fileStorage fileStorage
	logger      zerolog.Logger
	opts        Options
}

// New creates a new Transformer.
func New(p imageProcessor, fs fileStorage, logger zerolog.Logger, opts Options) *Transformer {
	if cpus := runtime.NumCPU(); opts.Workers <= 0 || opts.Workers > cpus {
		opts.Workers = cpus
	}

	return &Transformer{
		processor:   p,
		fileStorage: fs,
		logger:      logger,
		opts:        opts,
	}
}

// Prepare creates the output directory if it does not exist yet.
func (t *Transformer) Prepare() error {
	return t.fileStorage.EnsureDir(t.opts.OutputDir)
}

// Scan takes a one-time snapshot of the .jpg files directly inside the input
// directory. Files added afterwards are not seen by the current run.
func (t *Transformer) Scan(ctx context.Context) ([]model.StoredImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names, err := t.fileStorage.List(t.opts.InputDir, model.StoredExt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan stored images: %w", err)
	}

	images := make([]model.StoredImage, 0, len(names))
	for _, name := range names {
		images = append(images, model.StoredImage{
			Name: name,
			Path: t.fileStorage.Join(t.opts.InputDir, name),
		})
	}

	return images, nil
}

// Transform ensures the output directory exists and processes every image
// concurrently. Thumbnails are returned in input order.
func (t *Transformer) Transform(ctx context.Context, images []model.StoredImage) ([]model.ProcessedImage, error) {
	if err := t.Prepare(); err != nil {
		return nil, err
	}

	t.logger.Info().
		Int("images", len(images)).
		Int("workers", t.opts.Workers).
		Msg("starting transforms")

	return batch.Run(ctx, images,
		func(img model.StoredImage) string { return img.Name },
		batch.Options{Workers: t.opts.Workers, FailFast: t.opts.FailFast},
		t.process,
	)
}

func (t *Transformer) process(ctx context.Context, img model.StoredImage) (model.ProcessedImage, error) {
	t.logger.Info().Str("file", img.Name).Msg("processing image")

	out, err := t.processor.Process(ctx, img)
	if err != nil {
		return model.ProcessedImage{}, err
	}

	t.logger.Info().
		Str("file", img.Name).
		Str("thumbnail", out.Name).
		Int("width", out.Width).
		Int("height", out.Height).
		Msg("processed image")

	return out, nil
}
