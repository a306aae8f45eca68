// Package fixture reads fixture files: ordered scripts of send and expect
// directives replayed against the server under test.
//
// A line starting with '>' is a send directive; its payload is the rest of
// the line. Any other non-blank line is an expect directive whose payload must
// show up in the server's output. Lines are trimmed and blank lines skipped.
package fixture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SendPrefix marks a directive written to the server.
const SendPrefix = ">"

// Kind distinguishes send and expect directives
type Kind int

const (
	Send Kind = iota
	Expect
)

func (k Kind) String() string {
	switch k {
	case Send:
		return "send"
	case Expect:
		return "expect"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Directive is one executable line of a fixture.
type Directive struct {
	Kind    Kind
	Payload string
	Line    int // 1-based line number in the fixture file
}

// Bytes returns the UTF-8 wire form of the directive. Send directives are
// newline terminated.
func (d Directive) Bytes() []byte {
	if d.Kind == Send {
		return []byte(d.Payload + "\n")
	}
	return []byte(d.Payload)
}

// parseLine converts a raw line into a directive. ok is false for blank lines.
func parseLine(raw string, lineNo int) (Directive, bool) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return Directive{}, false
	}
	if strings.HasPrefix(line, SendPrefix) {
		return Directive{Kind: Send, Payload: line[len(SendPrefix):], Line: lineNo}, true
	}
	return Directive{Kind: Expect, Payload: line, Line: lineNo}, true
}

// Reader streams directives from a fixture in file order.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	rd := &Reader{scanner: bufio.NewScanner(r)}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// Open opens the fixture at path for streaming.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture %s: %w", path, err)
	}
	return NewReader(f), nil
}

// Next returns the next directive, or io.EOF once the fixture is exhausted.
func (r *Reader) Next() (Directive, error) {
	for r.scanner.Scan() {
		r.line++
		if d, ok := parseLine(r.scanner.Text(), r.line); ok {
			return d, nil
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Directive{}, fmt.Errorf("failed to read fixture line %d: %w", r.line+1, err)
	}
	return Directive{}, io.EOF
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Parse reads every directive from r.
func Parse(r io.Reader) ([]Directive, error) {
	rd := NewReader(r)
	var directives []Directive
	for {
		d, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return directives, nil
		}
		if err != nil {
			return nil, err
		}
		directives = append(directives, d)
	}
}

// Exists reports whether path exists and is a regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Discover lists the regular files directly under dir. It does not recurse.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		// Stat follows symlinks, so a link to a regular file counts.
		if Exists(path) {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// Resolve picks the fixtures to run: explicit arguments first, then the
// manifest's list, otherwise every regular file in defaultDir.
func Resolve(args []string, manifest []string, defaultDir string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(manifest) > 0 {
		return manifest, nil
	}
	return Discover(defaultDir)
}
