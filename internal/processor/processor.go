package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/disintegration/imaging"

	"github.com/aliskhannn/thumbnailer/internal/model"
)

const (
	// BlurSigma is the Gaussian blur radius applied before resizing.
	BlurSigma = 15

	// ThumbWidth and ThumbHeight bound the thumbnail; the source is never upscaled.
	ThumbWidth  = 300
	ThumbHeight = 300
)

var ErrDecode = errors.New("failed to decode image")

// fileStorage defines the interface for file storage.
type fileStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader) (string, int64, error)
	Load(ctx context.Context, path string) (io.ReadCloser, error)
}

// Processor turns one stored image into a blurred thumbnail.
type Processor struct {
	fileStorage fileStorage
	outputDir   string
}

// New creates a new Processor writing thumbnails to outputDir.
func New(fs fileStorage, outputDir string) *Processor {
	return &Processor{fileStorage: fs, outputDir: outputDir}
}

// Process decodes img, blurs it, fits it into the thumbnail box, encodes it
// as JPEG and saves it as thumb_<name>, replacing any previous thumbnail.
func (p *Processor) Process(ctx context.Context, img model.StoredImage) (model.ProcessedImage, error) {
	// Load the original image from storage.
	srcReader, err := p.fileStorage.Load(ctx, img.Path)
	if err != nil {
		return model.ProcessedImage{}, fmt.Errorf("failed to load original image: %w", err)
	}
	defer srcReader.Close()

	// Decode into an image object.
	src, err := imaging.Decode(srcReader)
	if err != nil {
		return model.ProcessedImage{}, fmt.Errorf("%w %s: %w", ErrDecode, img.Name, err)
	}

	// Skip filtering if the batch was cancelled while decoding.
	if err := ctx.Err(); err != nil {
		return model.ProcessedImage{}, err
	}

	thumb := Thumbnail(src)

	// Encode the thumbnail into a buffer for storage.
	buf := bytes.NewBuffer(nil)
	if err := imaging.Encode(buf, thumb, imaging.JPEG); err != nil {
		return model.ProcessedImage{}, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	// Save thumbnail.
	name := model.ProcessedName(img.Name)
	dst, _, err := p.fileStorage.Save(ctx, p.outputDir, name, buf)
	if err != nil {
		return model.ProcessedImage{}, fmt.Errorf("failed to save thumbnail: %w", err)
	}

	bounds := thumb.Bounds()

	return model.ProcessedImage{
		Name:   name,
		Path:   dst,
		Source: img.Name,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
