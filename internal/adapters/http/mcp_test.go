package httpadapter

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func callSearchTool(t *testing.T, search *searchServiceFake, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = searchToolName
	req.Params.Arguments = args

	result, err := searchToolHandler(search, testConfig(), testLogger())(context.Background(), req)
	if err != nil {
		t.Fatalf("tool handler returned error: %v", err)
	}
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatalf("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return text.Text
}

func TestSearchToolRendersGroups(t *testing.T) {
	search := &searchServiceFake{outcome: foldTowelOutcome()}

	result := callSearchTool(t, search, map[string]any{"query": "fold towel", "k": float64(5), "mode": "keyword"})
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if len(search.calls) != 1 || search.calls[0].K != 5 || search.calls[0].Mode != domain.ModeKeyword {
		t.Fatalf("unexpected dispatched query %+v", search.calls)
	}
	text := resultText(t, result)
	for _, want := range []string{"Found 2 results", "1. Fold Towel (70% match, 2 demos)", "hdf5: https://b.s3.us-east-1.amazonaws.com/2.hdf5"} {
		if !strings.Contains(text, want) {
			t.Fatalf("tool output missing %q:\n%s", want, text)
		}
	}
}

func TestSearchToolReportsFailures(t *testing.T) {
	search := &searchServiceFake{err: &domain.SearchRequestError{StatusCode: 500, Status: "500"}}

	result := callSearchTool(t, search, map[string]any{"query": "fold"})
	if !result.IsError {
		t.Fatalf("expected tool error")
	}
	if !strings.Contains(resultText(t, result), "Failed to fetch search results") {
		t.Fatalf("unexpected error text %q", resultText(t, result))
	}

	result = callSearchTool(t, &searchServiceFake{outcome: foldTowelOutcome()}, map[string]any{})
	if !result.IsError {
		t.Fatalf("expected missing query to be a tool error")
	}
}
