package convert

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ole2Header = append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 504)...)
	rtfContent = []byte(`{\rtf1\ansi Hello World}`)
	zipHeader  = append([]byte("PK\x03\x04"), make([]byte, 60)...)
)

func writeTemp(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func chainNames(chain []Descriptor) []string {
	names := make([]string, len(chain))
	for i, d := range chain {
		names[i] = d.Name
	}
	return names
}

func newTestRouter() *Router {
	return NewRouter(DefaultDescriptors("64m", ""))
}

func TestRoute_ExtensionTable(t *testing.T) {
	tests := []struct {
		filename string
		want     []string
	}{
		{"report.docx", []string{NamePandoc, NameMarkItDown}},
		{"REPORT.DOCX", []string{NamePandoc, NameMarkItDown}},
		{"letter.rtf", []string{NamePandoc}},
		{"sheet.odt", []string{NamePandoc}},
		{"sheet.ods", []string{NamePandoc}},
		{"notes.txt", []string{NamePandoc}},
		{"deck.pptx", []string{NameMarkItDown}},
		{"deck.ppt", []string{NameMarkItDown}},
		{"paper.pdf", []string{NameMarkItDown}},
		{"data.xlsx", []string{NameCalamine, NameMarkItDown}},
		{"data.xls", []string{NameCalamine, NameMarkItDown}},
	}

	r := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			// Content that passes the encryption pre-check for zip-based
			// extensions.
			path := writeTemp(t, tt.filename, zipHeader)
			chain, err := r.Route(tt.filename, path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, chainNames(chain))
		})
	}
}

func TestRoute_UnsupportedExtension(t *testing.T) {
	r := newTestRouter()
	for _, filename := range []string{"archive.zip", "binary.exe", "song.mp3"} {
		path := writeTemp(t, filename, []byte("content"))
		_, err := r.Route(filename, path)

		var ke *KindError
		require.True(t, errors.As(err, &ke), "expected KindError for %s", filename)
		assert.Equal(t, KindUnsupported, ke.Kind)
	}
}

func TestRoute_MissingExtension(t *testing.T) {
	r := newTestRouter()
	path := writeTemp(t, "noext", []byte("content"))
	_, err := r.Route("noext", path)

	var ke *KindError
	require.True(t, errors.As(err, &ke))
	assert.Equal(t, KindUnsupported, ke.Kind)
}

func TestRoute_DocWithRTFSignature(t *testing.T) {
	r := newTestRouter()
	path := writeTemp(t, "legacy.doc", rtfContent)

	chain, err := r.Route("legacy.doc", path)
	require.NoError(t, err)
	assert.Equal(t, []string{NamePandoc}, chainNames(chain))
}

func TestRoute_DocWithOLE2Signature(t *testing.T) {
	r := newTestRouter()
	path := writeTemp(t, "legacy.doc", ole2Header)

	chain, err := r.Route("legacy.doc", path)
	require.NoError(t, err)
	assert.Equal(t, []string{NameAntiword, NameMarkItDown, NamePandoc}, chainNames(chain))
}

func TestRoute_EncryptedOfficeContainers(t *testing.T) {
	// Encrypted OOXML is stored inside an OLE2 compound file; a zip-based
	// extension carrying the OLE2 signature is rejected before any
	// subprocess is spawned.
	r := newTestRouter()
	for _, filename := range []string{"secret.docx", "secret.xlsx", "secret.pptx"} {
		path := writeTemp(t, filename, ole2Header)
		_, err := r.Route(filename, path)

		var ke *KindError
		require.True(t, errors.As(err, &ke), "expected KindError for %s", filename)
		assert.Equal(t, KindPasswordProtected, ke.Kind, filename)
	}
}

func TestRoute_NativeOLE2FormatsNotFlagged(t *testing.T) {
	// .doc and .xls are OLE2 natively; the signature alone must not mark
	// them password-protected.
	r := newTestRouter()

	chain, err := r.Route("normal.xls", writeTemp(t, "normal.xls", ole2Header))
	require.NoError(t, err)
	assert.Equal(t, []string{NameCalamine, NameMarkItDown}, chainNames(chain))

	chain, err = r.Route("normal.doc", writeTemp(t, "normal.doc", ole2Header))
	require.NoError(t, err)
	assert.Equal(t, []string{NameAntiword, NameMarkItDown, NamePandoc}, chainNames(chain))
}

func TestRoute_MissingFileIsBadInput(t *testing.T) {
	r := newTestRouter()
	_, err := r.Route("ghost.doc", filepath.Join(t.TempDir(), "ghost.doc"))

	var ke *KindError
	require.True(t, errors.As(err, &ke))
	assert.Equal(t, KindBadInput, ke.Kind)
}

func TestAvailability(t *testing.T) {
	descriptors := map[string]Descriptor{
		"shell":   {Name: "shell", Command: "sh"},
		"missing": {Name: "missing", Command: "definitely-not-installed-anywhere"},
	}

	avail := Availability(descriptors)
	assert.True(t, avail["shell"])
	assert.False(t, avail["missing"])
}
