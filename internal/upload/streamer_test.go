package upload

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "safe filename", input: "document.docx", want: "document.docx"},
		{name: "path traversal blocked", input: "../../etc/passwd", want: "passwd"},
		{name: "strips directory", input: "/some/path/file.pdf", want: "file.pdf"},
		{name: "windows path", input: `C:\Users\me\report.doc`, want: "report.doc"},
		{name: "unsafe characters replaced", input: "file name (1).docx", want: "file_name__1_.docx"},
		{name: "empty", input: "", wantErr: true},
		{name: "dot", input: ".", wantErr: true},
		{name: "dot dot", input: "..", wantErr: true},
		{name: "only unsafe characters", input: "???", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeFilename(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFilename)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "/")
			assert.NotContains(t, got, "..")
		})
	}
}

func TestSpool_WithinLimit(t *testing.T) {
	s := NewStreamer(1024, t.TempDir())

	content := []byte("hello markdown world")
	tmp, err := s.Spool(bytes.NewReader(content), "note.txt")
	require.NoError(t, err)
	defer tmp.Cleanup()

	assert.Equal(t, int64(len(content)), tmp.Size)
	assert.Equal(t, "note.txt", tmp.Name)

	data, err := os.ReadFile(tmp.Path)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

// countingReader tracks how many bytes have been handed out, so the test
// can prove the streamer stopped reading once the cap was crossed.
type countingReader struct {
	r    io.Reader
	read int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	return n, err
}

func TestSpool_AbortsMidStream(t *testing.T) {
	const limit = 128 * 1024
	s := NewStreamer(limit, t.TempDir())

	// A body four times the limit. The streamer must give up long before
	// consuming it all.
	body := strings.NewReader(strings.Repeat("x", 4*limit))
	cr := &countingReader{r: body}

	_, err := s.Spool(cr, "big.docx")
	require.ErrorIs(t, err, ErrTooLarge)

	// One chunk past the limit at most.
	assert.LessOrEqual(t, cr.read, int64(limit+copyChunkSize))
}

func TestSpool_OneBytePastLimit(t *testing.T) {
	const limit = 100
	s := NewStreamer(limit, t.TempDir())

	_, err := s.Spool(bytes.NewReader(make([]byte, limit+1)), "edge.docx")
	assert.ErrorIs(t, err, ErrTooLarge)

	tmp, err := s.Spool(bytes.NewReader(make([]byte, limit)), "fits.docx")
	require.NoError(t, err)
	defer tmp.Cleanup()
	assert.Equal(t, int64(limit), tmp.Size)
}

func TestSpool_TooLargeLeavesNothingBehind(t *testing.T) {
	base := t.TempDir()
	s := NewStreamer(10, base)

	_, err := s.Spool(bytes.NewReader(make([]byte, 100)), "leak.docx")
	require.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries, "spool directory should be removed on abort")
}

func TestCleanup_Idempotent(t *testing.T) {
	base := t.TempDir()
	s := NewStreamer(1024, base)

	tmp, err := s.Spool(bytes.NewReader([]byte("data")), "doc.txt")
	require.NoError(t, err)

	tmp.Cleanup()
	tmp.Cleanup()

	_, err = os.Stat(tmp.Path)
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRename(t *testing.T) {
	s := NewStreamer(1024, t.TempDir())

	tmp, err := s.Spool(bytes.NewReader([]byte("{\\rtf1 hi}")), "payload.tmp")
	require.NoError(t, err)
	defer tmp.Cleanup()

	require.NoError(t, tmp.Rename("letter.doc"))
	assert.Equal(t, "letter.doc", tmp.Name)

	data, err := os.ReadFile(tmp.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("{\\rtf1 hi}"), data)
}
