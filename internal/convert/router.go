package convert

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Extension groupings for the default routing table. Mirrors the formats
// the external converters are known to handle.
var (
	pandocExtensions      = map[string]bool{".rtf": true, ".odt": true, ".ods": true, ".txt": true}
	markitdownExtensions  = map[string]bool{".pptx": true, ".ppt": true, ".pdf": true}
	spreadsheetExtensions = map[string]bool{".xlsx": true, ".xls": true}

	// Zip-based Office containers. When one of these arrives wrapped in an
	// OLE2 compound file it is an encrypted document.
	zipContainerExtensions = map[string]bool{".docx": true, ".xlsx": true, ".pptx": true}
)

const (
	mimeRTF        = "text/rtf"
	mimeOLEStorage = "application/x-ole-storage"
)

// Router maps filenames, and for ambiguous formats file-content
// signatures, to ordered fallback chains of converters.
type Router struct {
	descriptors map[string]Descriptor
}

// NewRouter creates a router over the given converter set.
func NewRouter(descriptors map[string]Descriptor) *Router {
	return &Router{descriptors: descriptors}
}

// Descriptors exposes the converter set, used by the health probe.
func (r *Router) Descriptors() map[string]Descriptor {
	return r.descriptors
}

// Route returns the fallback chain for the named file. The file at path is
// only inspected for formats whose extension is ambiguous (.doc) or that
// need an encryption pre-check (zip-based Office containers). Failures are
// KindError values: Unsupported for unknown extensions and
// PasswordProtected for encrypted documents, the latter detected before
// any subprocess is spawned.
func (r *Router) Route(filename, path string) ([]Descriptor, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return nil, &KindError{Kind: KindUnsupported, Message: "missing file extension"}
	}

	if zipContainerExtensions[ext] {
		encrypted, err := isOLE2(path)
		if err != nil {
			return nil, &KindError{Kind: KindBadInput, Message: fmt.Sprintf("cannot inspect file: %v", err)}
		}
		if encrypted {
			return nil, &KindError{
				Kind:    KindPasswordProtected,
				Message: "file appears to be password-protected",
			}
		}
	}

	switch {
	case ext == ".doc":
		return r.routeDoc(path)
	case ext == ".docx":
		// Pandoc first with its heap cap; MarkItDown picks up documents
		// that exhaust it.
		return r.chain(NamePandoc, NameMarkItDown)
	case pandocExtensions[ext]:
		return r.chain(NamePandoc)
	case markitdownExtensions[ext]:
		return r.chain(NameMarkItDown)
	case spreadsheetExtensions[ext]:
		return r.chain(NameCalamine, NameMarkItDown)
	default:
		return nil, &KindError{Kind: KindUnsupported, Message: fmt.Sprintf("unsupported file extension: %s", ext)}
	}
}

// routeDoc disambiguates the legacy .doc extension by content signature:
// RTF text masquerading as .doc goes straight to Pandoc, real OLE2 word
// documents walk antiword, MarkItDown, Pandoc in order.
func (r *Router) routeDoc(path string) ([]Descriptor, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, &KindError{Kind: KindBadInput, Message: fmt.Sprintf("cannot inspect file: %v", err)}
	}

	if mtype.Is(mimeRTF) {
		return r.chain(NamePandoc)
	}
	return r.chain(NameAntiword, NameMarkItDown, NamePandoc)
}

// isOLE2 reports whether the file carries an OLE2 compound-file signature.
func isOLE2(path string) (bool, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return false, err
	}
	return mtype.Is(mimeOLEStorage), nil
}

func (r *Router) chain(names ...string) ([]Descriptor, error) {
	chain := make([]Descriptor, 0, len(names))
	for _, name := range names {
		d, ok := r.descriptors[name]
		if !ok {
			return nil, fmt.Errorf("converter %q not configured", name)
		}
		chain = append(chain, d)
	}
	return chain, nil
}
