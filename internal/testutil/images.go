// Package testutil provides image fixtures and HTTP helpers shared by package tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
)

// Checkerboard returns a w×h image of alternating black and white cells of the given size.
// Its high pixel variance makes blurring easy to detect.
func Checkerboard(w, h, cell int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{A: 255}
			if (x/cell+y/cell)%2 == 0 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}

	return img
}

// JPEG encodes img as JPEG and returns the bytes.
func JPEG(t testing.TB, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	return buf.Bytes()
}

// Variance returns the variance of the grayscale luminance of img.
func Variance(img image.Image) float64 {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	n := float64(b.Dx() * b.Dy())
	if n == 0 {
		return 0
	}

	var sum, sumSq float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := float64(gray.NRGBAAt(x, y).R)
			sum += v
			sumSq += v * v
		}
	}

	mean := sum / n
	return sumSq/n - mean*mean
}

// Server serves fixed bodies keyed by request path and counts requests.
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	bodies map[string][]byte
	status map[string]int
	hits   map[string]int
}

// NewServer starts a Server. Unknown paths answer 404. Close it when done.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		bodies: make(map[string][]byte),
		status: make(map[string]int),
		hits:   make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)

	return s
}

// Handle registers a body for path, answered with status code.
func (s *Server) Handle(path string, code int, body []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bodies[path] = body
	s.status[path] = code

	return s.URL + path
}

// Hits returns how many requests path has received.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hits[path]
}

// Total returns the number of requests received across all paths.
func (s *Server) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, n := range s.hits {
		total += n
	}

	return total
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	body, ok := s.bodies[r.URL.Path]
	code := s.status[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	w.WriteHeader(code)
	w.Write(body)
}
