// Package textfile supplies the line content of the MOTD and INFO files.
package textfile

import (
	"bufio"
	"errors"
	"fmt"
	"iter"
	"os"
	"strings"
)

// ErrAbsent reports that no content is available for a path.
var ErrAbsent = errors.New("file absent")

// Provider yields the lines of a text file. The returned sequence is lazy and
// can be ranged over more than once.
type Provider interface {
	Lines(path string) (iter.Seq[string], error)
}

// Files reads from the local filesystem.
type Files struct{}

// Lines returns ErrAbsent for an empty path, a missing file or a directory.
func (Files) Lines(path string) (iter.Seq[string], error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrAbsent
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrAbsent)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", path, ErrAbsent)
	}

	return func(yield func(string) bool) {
		f, err := os.Open(path)
		if err != nil {
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(strings.TrimRight(scanner.Text(), "\r")) {
				return
			}
		}
	}, nil
}

// Static serves fixed content keyed by path.
type Static map[string][]string

// Lines returns the configured lines or ErrAbsent.
func (s Static) Lines(path string) (iter.Seq[string], error) {
	lines, ok := s[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrAbsent)
	}
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}, nil
}
