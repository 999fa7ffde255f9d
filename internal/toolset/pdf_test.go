package toolset

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/user/docpilot/internal/types"
)

func TestSearchDocumentFindsPages(t *testing.T) {
	pages := []types.Page{
		{Number: 1, Text: "Introduction to the annual budget process."},
		{Number: 2, Text: "The budget for 2025 allocates funds to research."},
		{Number: 3, Text: "Appendix with unrelated tables."},
	}
	tool := NewSearchDocument(pages)

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"budget"}`))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "p. 1") || !strings.Contains(out, "p. 2") {
		t.Errorf("expected matches on pages 1 and 2, got %q", out)
	}
	if strings.Contains(out, "p. 3") {
		t.Errorf("page 3 should not match, got %q", out)
	}
}

func TestSearchDocumentCaseInsensitive(t *testing.T) {
	tool := NewSearchDocument([]types.Page{{Number: 1, Text: "Revenue GREW strongly."}})
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"grew"}`))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "p. 1") {
		t.Errorf("expected case-insensitive match, got %q", out)
	}
}

func TestSearchDocumentNoMatch(t *testing.T) {
	tool := NewSearchDocument([]types.Page{{Number: 1, Text: "nothing relevant"}})
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"zebra"}`))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "no matches") {
		t.Errorf("expected a no-matches report, got %q", out)
	}
}

func TestSearchDocumentMissingQuery(t *testing.T) {
	tool := NewSearchDocument(nil)
	if _, err := tool.Execute(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Error("expected error for missing query")
	}
}

func TestGotoPageBounds(t *testing.T) {
	backend := &fakeBackend{}
	tool := NewGotoPage(backend, "doc-1", 5)

	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"page":3}`)); err != nil {
		t.Fatal(err)
	}
	if len(backend.ops) != 1 || backend.ops[0] != "goto_page" {
		t.Errorf("expected goto_page applied to backend, got %v", backend.ops)
	}

	for _, bad := range []string{`{"page":0}`, `{"page":6}`, `{"page":-1}`} {
		if _, err := tool.Execute(context.Background(), json.RawMessage(bad)); err == nil {
			t.Errorf("expected out-of-range error for %s", bad)
		}
	}
	if len(backend.ops) != 1 {
		t.Error("out-of-range pages must not reach the backend")
	}
}
