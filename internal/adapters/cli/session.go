// Package cli is the interactive terminal front end: queries typed on stdin
// run asynchronously and only the newest one is ever displayed.
package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
	"github.com/asimovlabs/egodata-portal/internal/core/ports"
	"github.com/asimovlabs/egodata-portal/internal/core/usecase"
)

const helpText = `Type a task description to search, or:
  get <n>       download every demo of result n as <task>_all.zip
  get <n> <i>   download demo i of result n as <task>_<i>.zip
  clear         clear the current results
  exit          quit`

var (
	titleStyle   = color.New(color.FgCyan, color.Bold)
	successStyle = color.New(color.FgGreen)
	infoStyle    = color.New(color.FgYellow)
	errorStyle   = color.New(color.FgRed, color.Bold)
	dimStyle     = color.New(color.Faint)
)

type Options struct {
	K    int
	Mode domain.SearchMode
}

type Session struct {
	search   ports.SearchService
	exporter ports.BundleExporter
	storage  ports.FileStorage
	view     *usecase.SearchView
	opts     Options
	logger   *slog.Logger

	outMu sync.Mutex
	out   io.Writer
	wg    sync.WaitGroup
}

func NewSession(
	search ports.SearchService,
	exporter ports.BundleExporter,
	storage ports.FileStorage,
	opts Options,
	out io.Writer,
	logger *slog.Logger,
) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.K <= 0 {
		opts.K = 10
	}
	if opts.Mode == "" {
		opts.Mode = domain.ModeSemantic
	}
	return &Session{
		search:   search,
		exporter: exporter,
		storage:  storage,
		view:     usecase.NewSearchView(),
		opts:     opts,
		logger:   logger,
		out:      out,
	}
}

// Run reads commands until in is exhausted, "exit" is typed or ctx is done.
// Pending searches are awaited before it returns.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	defer s.wg.Wait()

	s.printf(dimStyle, "%s\n", helpText)
	scanner := bufio.NewScanner(in)
	for {
		if ctx.Err() != nil {
			return nil
		}
		s.printf(titleStyle, "> ")
		if !scanner.Scan() {
			break
		}
		if !s.handle(ctx, scanner.Text()) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

// Once runs a single query synchronously.
func (s *Session) Once(ctx context.Context, text string) error {
	outcome, _, err := s.view.Run(ctx, s.search, s.query(text))
	if err != nil {
		s.printNotice(usecase.SearchFailureNotice())
		return err
	}
	s.printOutcome(outcome)
	return nil
}

func (s *Session) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	switch {
	case line == "":
	case line == "exit" || line == "quit":
		return false
	case line == "help":
		s.printf(dimStyle, "%s\n", helpText)
	case line == "clear":
		s.view.Reset()
		s.printf(dimStyle, "cleared\n")
	case fields[0] == "get":
		if err := s.download(ctx, fields[1:]); err != nil {
			s.logger.Debug("download_failed", "error", err)
			s.printf(errorStyle, "%s\n", err)
		}
	default:
		s.startSearch(ctx, line)
	}
	return true
}

func (s *Session) query(text string) domain.SearchQuery {
	return domain.SearchQuery{Text: text, K: s.opts.K, Mode: s.opts.Mode}
}

func (s *Session) startSearch(ctx context.Context, text string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		outcome, applied, err := s.view.Run(ctx, s.search, s.query(text))
		if !applied {
			s.logger.Debug("stale_search_discarded", "query", text)
			return
		}
		if err != nil {
			s.logger.Debug("search_failed", "query", text, "error", err)
			if domain.IsKind(err, domain.ErrInvalidInput) {
				s.printf(errorStyle, "%s\n", "Please enter a search query")
				return
			}
			s.printNotice(usecase.SearchFailureNotice())
			return
		}
		s.printOutcome(outcome)
	}()
}

func (s *Session) download(ctx context.Context, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("usage: get <n> [i]")
	}
	groups := s.view.Snapshot().Groups
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(groups) {
		return fmt.Errorf("no result %s", args[0])
	}
	group := groups[n-1]

	req := domain.ExportRequest{Prefix: group.Task, Pairs: group.Pairs()}
	if len(args) == 2 {
		i, err := strconv.Atoi(args[1])
		if err != nil || i < 1 || i > len(group.Files) {
			return fmt.Errorf("result %d has no demo %s", n, args[1])
		}
		req.Pairs = req.Pairs[i-1 : i]
		req.StartIndex = i
	}

	s.printf(infoStyle, "Preparing %d files...\n", len(req.Pairs)*2)
	archive, err := s.exporter.Export(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to download files: %w", err)
	}
	path, err := s.storage.Save(ctx, archive.Name, bytes.NewReader(archive.Data))
	if err != nil {
		return fmt.Errorf("save %s: %w", archive.Name, err)
	}
	s.printf(successStyle, "Download complete: %s\n", path)
	return nil
}

func (s *Session) printOutcome(outcome *domain.SearchOutcome) {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	s.noticeLocked(outcome.Notice)
	for i, g := range outcome.Groups {
		titleStyle.Fprintf(s.out, "%2d. %s", i+1, usecase.FormatTaskName(g.Task))
		fmt.Fprintf(s.out, "  %s match  %d demos\n", usecase.FormatScore(g.AvgScore), len(g.Files))
		if g.Description != "" {
			dimStyle.Fprintf(s.out, "    %s\n", g.Description)
		}
	}
}

func (s *Session) printNotice(n domain.Notice) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	s.noticeLocked(n)
}

func (s *Session) noticeLocked(n domain.Notice) {
	style := infoStyle
	switch n.Level {
	case domain.NoticeSuccess:
		style = successStyle
	case domain.NoticeError:
		style = errorStyle
	}
	style.Fprintln(s.out, n.Message)
}

func (s *Session) printf(style *color.Color, format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	style.Fprintf(s.out, format, args...)
}
