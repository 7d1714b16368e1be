package fetcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/aliskhannn/thumbnailer/internal/batch"
	"github.com/aliskhannn/thumbnailer/internal/model"
)

// sniffLen is how many leading bytes of a body are used for MIME detection.
const sniffLen = 512

var ErrNotImage = errors.New("downloaded content is not an image")

// client defines the interface for retrieving a remote resource.
type client interface {
	Get(ctx context.Context, url string) (io.ReadCloser, error)
}

// fileStorage defines the interface for writing downloaded files.
type fileStorage interface {
	EnsureDir(dir string) error
	Save(ctx context.Context, subdir, filename string, src io.Reader) (string, int64, error)
}

// Options configures the Fetcher.
type Options struct {
	// Workers is the number of concurrent downloads. Default: DefaultWorkers().
	Workers int

	// Dir is the store directory images are written to.
	Dir string

	// VerifyContent rejects bodies whose sniffed type is not image/*.
	VerifyContent bool

	// FailFast aborts the remaining downloads on the first failure.
	FailFast bool
}

// DefaultWorkers returns the default download concurrency: NumCPU+4, capped at 32.
func DefaultWorkers() int {
	return min(32, runtime.NumCPU()+4)
}

// Fetcher downloads source URLs into the image store.
type Fetcher struct {
	client      client
	fileStorage fileStorage
	logger      zerolog.Logger
	opts        Options
}

// New creates a new Fetcher.
func New(c client, fs fileStorage, logger zerolog.Logger, opts Options) *Fetcher {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}

	return &Fetcher{
		client:      c,
		fileStorage: fs,
		logger:      logger,
		opts:        opts,
	}
}

// Fetch ensures the store directory exists, then downloads every URL
// concurrently and writes each body verbatim under its derived name,
// overwriting existing files. A repeated URL is downloaded once. It returns
// once every download has finished or failed. Stored images are returned in
// input order.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) ([]model.StoredImage, error) {
	if err := f.fileStorage.EnsureDir(f.opts.Dir); err != nil {
		return nil, err
	}

	sources, err := model.Sources(urls)
	if err != nil {
		return nil, fmt.Errorf("invalid sources: %w", err)
	}

	f.logger.Info().
		Int("images", len(sources)).
		Int("workers", f.opts.Workers).
		Msg("starting downloads")

	return batch.Run(ctx, sources,
		func(s model.Source) string { return s.URL },
		batch.Options{Workers: f.opts.Workers, FailFast: f.opts.FailFast},
		f.download,
	)
}

// download retrieves a single source and stores it.
func (f *Fetcher) download(ctx context.Context, src model.Source) (model.StoredImage, error) {
	f.logger.Info().Str("url", src.URL).Str("file", src.Name).Msg("downloading image")

	body, err := f.client.Get(ctx, src.URL)
	if err != nil {
		return model.StoredImage{}, fmt.Errorf("failed to download image: %w", err)
	}
	defer body.Close()

	// Sniff the content type without consuming the body.
	br := bufio.NewReaderSize(body, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return model.StoredImage{}, fmt.Errorf("failed to read response body: %w", err)
	}

	contentType := mimetype.Detect(head).String()
	if f.opts.VerifyContent && !strings.HasPrefix(contentType, "image/") {
		return model.StoredImage{}, fmt.Errorf("%w: got %s", ErrNotImage, contentType)
	}

	path, n, err := f.fileStorage.Save(ctx, f.opts.Dir, src.Name, br)
	if err != nil {
		return model.StoredImage{}, fmt.Errorf("failed to store image: %w", err)
	}

	f.logger.Info().
		Str("file", src.Name).
		Int64("bytes", n).
		Str("content_type", contentType).
		Msg("downloaded image")

	return model.StoredImage{
		Name:        src.Name,
		Path:        path,
		URL:         src.URL,
		Size:        n,
		ContentType: contentType,
	}, nil
}
