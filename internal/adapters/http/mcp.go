package httpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/asimovlabs/egodata-portal/internal/config"
	"github.com/asimovlabs/egodata-portal/internal/core/domain"
	"github.com/asimovlabs/egodata-portal/internal/core/ports"
	"github.com/asimovlabs/egodata-portal/internal/core/usecase"
)

const searchToolName = "search_demonstrations"

func newMCPServer(search ports.SearchService, cfg config.Config, logger *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("egodata-portal", "1.0.0", server.WithToolCapabilities(false))

	tool := mcp.NewTool(searchToolName,
		mcp.WithDescription("Search egocentric demonstration recordings and return them grouped by task description."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language description of the task, e.g. \"fold the towel\"."),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of raw results to request."),
		),
		mcp.WithString("mode",
			mcp.Enum(string(domain.ModeSemantic), string(domain.ModeKeyword), string(domain.ModeHybrid)),
			mcp.Description("Retrieval mode."),
		),
	)
	s.AddTool(tool, searchToolHandler(search, cfg, logger))
	return s
}

func newMCPHandler(search ports.SearchService, cfg config.Config, logger *slog.Logger) http.Handler {
	return server.NewStreamableHTTPServer(newMCPServer(search, cfg, logger))
}

func searchToolHandler(search ports.SearchService, cfg config.Config, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		mode, err := domain.ParseSearchMode(req.GetString("mode", cfg.SearchDefaultMode))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		k := req.GetInt("k", cfg.SearchDefaultK)
		if cfg.SearchMaxK > 0 && k > cfg.SearchMaxK {
			k = cfg.SearchMaxK
		}

		outcome, err := search.Search(ctx, domain.SearchQuery{Text: text, K: k, Mode: mode})
		if err != nil {
			logger.Warn("mcp_search_failed", "query", text, "error", err)
			if domain.IsKind(err, domain.ErrInvalidInput) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultError(usecase.SearchFailureNotice().Message), nil
		}
		return mcp.NewToolResultText(renderOutcome(outcome)), nil
	}
}

func renderOutcome(outcome *domain.SearchOutcome) string {
	var b strings.Builder
	b.WriteString(outcome.Notice.Message)
	for i, g := range outcome.Groups {
		fmt.Fprintf(&b, "\n\n%d. %s (%s match, %d demos)\n   %s",
			i+1, usecase.FormatTaskName(g.Task), usecase.FormatScore(g.AvgScore), len(g.Files), g.Description)
		for j, f := range g.Files {
			fmt.Fprintf(&b, "\n   [%d] mp4: %s\n       hdf5: %s", j+1, f.MP4, f.HDF5)
		}
	}
	return b.String()
}
