package transformer

import (
	"context"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/thumbnailer/internal/batch"
	"github.com/aliskhannn/thumbnailer/internal/processor"
	"github.com/aliskhannn/thumbnailer/internal/storage/file"
	"github.com/aliskhannn/thumbnailer/internal/testutil"
)

func setup(t *testing.T, failFast bool) (string, *Transformer) {
	t.Helper()

	root := t.TempDir()
	s := file.NewLocalStorage(root)
	p := processor.New(s, "images/processed")

	return root, New(p, s, zerolog.Nop(), Options{
		InputDir:  "images",
		OutputDir: "images/processed",
		FailFast:  failFast,
	})
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestScanSnapshot(t *testing.T) {
	root, tr := setup(t, true)
	jpeg := testutil.JPEG(t, testutil.Checkerboard(10, 10, 2))

	writeFile(t, filepath.Join(root, "images", "b.jpg"), jpeg)
	writeFile(t, filepath.Join(root, "images", "a.jpg"), jpeg)
	writeFile(t, filepath.Join(root, "images", "readme.txt"), []byte("x"))
	writeFile(t, filepath.Join(root, "images", "processed", "thumb_a.jpg"), jpeg)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "images", "dir.jpg"), 0o755))

	images, err := tr.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "a.jpg", images[0].Name)
	assert.Equal(t, filepath.Join("images", "a.jpg"), images[0].Path)
	assert.Equal(t, "b.jpg", images[1].Name)
}

func TestTransformWritesThumbnails(t *testing.T) {
	root, tr := setup(t, true)
	writeFile(t, filepath.Join(root, "images", "wide.jpg"), testutil.JPEG(t, testutil.Checkerboard(900, 300, 15)))
	writeFile(t, filepath.Join(root, "images", "tiny.jpg"), testutil.JPEG(t, testutil.Checkerboard(40, 30, 5)))

	images, err := tr.Scan(context.Background())
	require.NoError(t, err)

	out, err := tr.Transform(context.Background(), images)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "thumb_tiny.jpg", out[0].Name)
	assert.Equal(t, "thumb_wide.jpg", out[1].Name)

	for _, img := range out {
		f, err := os.Open(filepath.Join(root, img.Path))
		require.NoError(t, err)
		cfg, format, err := image.DecodeConfig(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.LessOrEqual(t, cfg.Width, processor.ThumbWidth)
		assert.LessOrEqual(t, cfg.Height, processor.ThumbHeight)
	}

	assert.Equal(t, 300, out[1].Width)
	assert.Equal(t, 100, out[1].Height)
	assert.Equal(t, 40, out[0].Width)
	assert.Equal(t, 30, out[0].Height)
}

func TestTransformEmpty(t *testing.T) {
	root, tr := setup(t, true)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "images"), 0o755))

	images, err := tr.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, images)

	out, err := tr.Transform(context.Background(), images)
	require.NoError(t, err)
	assert.Empty(t, out)

	entries, err := os.ReadDir(filepath.Join(root, "images", "processed"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTransformFailFastNamesFile(t *testing.T) {
	root, tr := setup(t, true)
	writeFile(t, filepath.Join(root, "images", "corrupt.jpg"), []byte("not an image"))

	images, err := tr.Scan(context.Background())
	require.NoError(t, err)

	_, err = tr.Transform(context.Background(), images)
	require.ErrorIs(t, err, processor.ErrDecode)

	var itemErr *batch.ItemError
	require.ErrorAs(t, err, &itemErr)
	assert.Equal(t, "corrupt.jpg", itemErr.Item)
}

func TestTransformCollectsFailures(t *testing.T) {
	root, tr := setup(t, false)
	writeFile(t, filepath.Join(root, "images", "bad.jpg"), []byte("not an image"))
	writeFile(t, filepath.Join(root, "images", "good.jpg"), testutil.JPEG(t, testutil.Checkerboard(20, 20, 4)))

	images, err := tr.Scan(context.Background())
	require.NoError(t, err)

	out, err := tr.Transform(context.Background(), images)
	var batchErr *batch.Error
	require.ErrorAs(t, err, &batchErr)
	require.Len(t, batchErr.Failures, 1)
	assert.Equal(t, "bad.jpg", batchErr.Failures[0].Item)

	require.Len(t, out, 1)
	assert.Equal(t, "thumb_good.jpg", out[0].Name)
	assert.FileExists(t, filepath.Join(root, "images", "processed", "thumb_good.jpg"))
}

func TestWorkersCappedAtCPUCount(t *testing.T) {
	tr := New(nil, nil, zerolog.Nop(), Options{Workers: 10_000})
	assert.Equal(t, runtime.NumCPU(), tr.opts.Workers)

	tr = New(nil, nil, zerolog.Nop(), Options{})
	assert.Equal(t, runtime.NumCPU(), tr.opts.Workers)
}

func TestScanMissingDir(t *testing.T) {
	_, tr := setup(t, true)

	_, err := tr.Scan(context.Background())
	assert.Error(t, err)
}
