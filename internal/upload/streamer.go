// Package upload spools request bodies to disk under a strict byte budget.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// ErrTooLarge is returned when an upload exceeds the configured size cap.
// Streaming stops the moment the cap is crossed; the rest of the body is
// never read.
var ErrTooLarge = errors.New("upload exceeds size limit")

// ErrInvalidFilename is returned when no safe filename can be derived.
var ErrInvalidFilename = errors.New("invalid filename")

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// copyChunkSize bounds how much of the body is held in memory at once.
const copyChunkSize = 64 * 1024

// SanitizeFilename reduces a client-supplied filename to a safe basename,
// preserving the extension. Path separators and unsafe characters are
// stripped so the name can be used directly inside the spool directory.
func SanitizeFilename(filename string) (string, error) {
	// Client may be on Windows; treat backslashes as separators too.
	name := filepath.Base(strings.ReplaceAll(filename, `\`, `/`))
	name = unsafeChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." || strings.Trim(name, "._-") == "" {
		return "", ErrInvalidFilename
	}
	return name, nil
}

// TempFile is a spooled upload on disk. Cleanup removes the whole spool
// directory and is safe to call more than once.
type TempFile struct {
	Path string
	Name string
	Size int64

	dir  string
	once sync.Once
}

// Cleanup deletes the spool directory. The first call wins.
func (t *TempFile) Cleanup() {
	t.once.Do(func() {
		if t.dir != "" {
			os.RemoveAll(t.dir)
		}
	})
}

// Rename gives the spooled file a new basename inside its spool directory,
// used when the final filename only becomes known after the body part has
// been read.
func (t *TempFile) Rename(name string) error {
	newPath := filepath.Join(t.dir, name)
	if newPath == t.Path {
		return nil
	}
	if err := os.Rename(t.Path, newPath); err != nil {
		return fmt.Errorf("renaming spooled file: %w", err)
	}
	t.Path = newPath
	t.Name = name
	return nil
}

// Streamer copies uploads into per-request spool directories while
// enforcing the size cap chunk by chunk.
type Streamer struct {
	maxBytes int64
	tempDir  string
}

// NewStreamer creates a streamer writing under tempDir with the given
// byte cap.
func NewStreamer(maxBytes int64, tempDir string) *Streamer {
	return &Streamer{maxBytes: maxBytes, tempDir: tempDir}
}

// Spool reads r in bounded chunks into a fresh spool directory. The
// cumulative size is checked after every chunk; the moment it exceeds the
// cap the spool is discarded and ErrTooLarge returned, without buffering
// the remainder of the body.
func (s *Streamer) Spool(r io.Reader, name string) (*TempFile, error) {
	dir, err := os.MkdirTemp(s.tempDir, "convert-")
	if err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}

	tmp := &TempFile{dir: dir, Name: name, Path: filepath.Join(dir, name)}

	f, err := os.Create(tmp.Path)
	if err != nil {
		tmp.Cleanup()
		return nil, fmt.Errorf("creating spool file: %w", err)
	}

	buf := make([]byte, copyChunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			tmp.Size += int64(n)
			if tmp.Size > s.maxBytes {
				f.Close()
				tmp.Cleanup()
				return nil, ErrTooLarge
			}
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				tmp.Cleanup()
				return nil, fmt.Errorf("writing spool file: %w", werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			f.Close()
			tmp.Cleanup()
			return nil, fmt.Errorf("reading upload: %w", rerr)
		}
	}

	if err := f.Close(); err != nil {
		tmp.Cleanup()
		return nil, fmt.Errorf("closing spool file: %w", err)
	}

	return tmp, nil
}
