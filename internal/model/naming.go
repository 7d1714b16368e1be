package model

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// StoredExt is appended to every derived base name.
	StoredExt = ".jpg"

	// ProcessedPrefix marks thumbnails in the processed directory.
	ProcessedPrefix = "thumb_"
)

var (
	ErrEmptyName     = errors.New("derived image name is empty")
	ErrDuplicateName = errors.New("derived image name is not unique")
)

// BaseName returns the last "/"-delimited segment of rawURL with everything
// from the first "?" onward removed.
func BaseName(rawURL string) string {
	segment := rawURL[strings.LastIndex(rawURL, "/")+1:]
	if i := strings.Index(segment, "?"); i >= 0 {
		segment = segment[:i]
	}

	return segment
}

// StoredName derives the file name a source URL is stored under.
func StoredName(rawURL string) (string, error) {
	base := BaseName(rawURL)
	if base == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptyName, rawURL)
	}

	return base + StoredExt, nil
}

// ProcessedName returns the thumbnail file name for a stored image name.
func ProcessedName(storedName string) string {
	return ProcessedPrefix + storedName
}

// Source is a single input URL together with the name it will be stored under.
type Source struct {
	URL  string
	Name string
}

// Sources derives stored names for every URL, preserving order.
// A URL listed more than once is kept at its first position only.
// It fails if any name is empty or if two different URLs map to the same file.
func Sources(urls []string) ([]Source, error) {
	sources := make([]Source, 0, len(urls))
	seen := make(map[string]string, len(urls))

	for _, u := range urls {
		name, err := StoredName(u)
		if err != nil {
			return nil, err
		}

		if prev, ok := seen[name]; ok {
			if prev == u {
				continue
			}
			return nil, fmt.Errorf("%w: %q and %q both map to %s", ErrDuplicateName, prev, u, name)
		}
		seen[name] = u

		sources = append(sources, Source{URL: u, Name: name})
	}

	return sources, nil
}
