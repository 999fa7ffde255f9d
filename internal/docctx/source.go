// internal/docctx/source.go
package docctx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/docpilot/internal/types"
)

// defaultPageChars bounds how much text lands on one synthesized page when
// the source carries no page markers of its own.
const defaultPageChars = 1800

// IsRemoteLocator reports whether the locator points at a remote resource.
// Remote documents are never loaded by the local fallback; their content
// must arrive pre-extracted in the context fragment.
func IsRemoteLocator(locator string) bool {
	return strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://")
}

// FileSource extracts paginated text from local files. Extracted PDF text
// dumps use form-feed page breaks, which are preserved as page boundaries;
// HTML is converted to markdown first; everything else is packed into
// fixed-size pages on paragraph boundaries.
type FileSource struct {
	maxPageChars int
}

// NewFileSource creates a FileSource with the default page size.
func NewFileSource() *FileSource {
	return &FileSource{maxPageChars: defaultPageChars}
}

// LoadPages reads the file at locator and returns its ordered pages.
func (s *FileSource) LoadPages(ctx context.Context, locator string) ([]types.Page, error) {
	if IsRemoteLocator(locator) {
		return nil, fmt.Errorf("remote locator %s: local source only", locator)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(locator)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", locator, err)
	}
	text := string(data)

	switch strings.ToLower(filepath.Ext(locator)) {
	case ".html", ".htm":
		md, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			return nil, fmt.Errorf("convert %s to markdown: %w", locator, err)
		}
		text = md
	}

	pages := paginate(text, s.maxPageChars)
	if len(pages) == 0 {
		return nil, fmt.Errorf("no text content in %s", locator)
	}
	return pages, nil
}

// paginate splits text into pages, honoring form-feed breaks when present
// and otherwise packing paragraphs up to maxChars per page.
func paginate(text string, maxChars int) []types.Page {
	var raw []string
	if strings.Contains(text, "\f") {
		raw = strings.Split(text, "\f")
	} else {
		raw = packParagraphs(text, maxChars)
	}

	pages := make([]types.Page, 0, len(raw))
	for _, chunk := range raw {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		pages = append(pages, types.Page{
			Number:    len(pages) + 1,
			Text:      chunk,
			WordCount: len(strings.Fields(chunk)),
		})
	}
	return pages
}

func packParagraphs(text string, maxChars int) []string {
	paragraphs := strings.Split(text, "\n\n")
	var out []string
	var current strings.Builder

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para) > maxChars {
			out = append(out, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)

		// A single oversized paragraph still becomes its own page rather
		// than being split mid-sentence.
		if current.Len() >= maxChars {
			out = append(out, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}
