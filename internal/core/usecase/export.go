package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
	"github.com/asimovlabs/egodata-portal/internal/core/ports"
)

type ExportLimits struct {
	MaxParallel         int
	MaxPairs            int
	MaxFileBytes        int64
	MaxArchiveBytes     int64
	AllowedHostSuffixes []string
}

func (l ExportLimits) normalize() ExportLimits {
	out := l
	if out.MaxParallel <= 0 {
		out.MaxParallel = 4
	}
	if out.MaxPairs <= 0 {
		out.MaxPairs = 50
	}
	if out.MaxFileBytes <= 0 {
		out.MaxFileBytes = 512 << 20
	}
	if out.MaxArchiveBytes <= 0 {
		out.MaxArchiveBytes = 2 << 30
	}
	return out
}

type ExportUseCase struct {
	fetcher    ports.ObjectFetcher
	archiver   ports.ArchiveBuilder
	normalizer ports.RefNormalizer
	limits     ExportLimits
	logger     *slog.Logger
}

func NewExportUseCase(
	fetcher ports.ObjectFetcher,
	archiver ports.ArchiveBuilder,
	normalizer ports.RefNormalizer,
	limits ExportLimits,
	logger *slog.Logger,
) *ExportUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportUseCase{
		fetcher:    fetcher,
		archiver:   archiver,
		normalizer: normalizer,
		limits:     limits.normalize(),
		logger:     logger,
	}
}

type exportJob struct {
	name string
	url  string
}

// Export fetches every file of every pair and packs them into one archive.
// Any failed fetch aborts the export; no partial archive is ever returned.
func (uc *ExportUseCase) Export(ctx context.Context, req domain.ExportRequest) (*domain.Archive, error) {
	jobs, err := uc.plan(req)
	if err != nil {
		return nil, err
	}

	files := make([]ports.ArchiveFile, len(jobs))
	entries := make([]domain.ArchiveEntry, len(jobs))
	var total atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.limits.MaxParallel)
	for i, job := range jobs {
		g.Go(func() error {
			data, err := uc.fetcher.Fetch(gctx, job.url, uc.limits.MaxFileBytes)
			if err != nil {
				return &domain.ExportError{Filename: job.name, URL: job.url, Err: err}
			}
			if total.Add(int64(len(data))) > uc.limits.MaxArchiveBytes {
				return domain.WrapError(domain.ErrTooLarge, "export bundle",
					fmt.Errorf("archive exceeds %d bytes", uc.limits.MaxArchiveBytes))
			}
			files[i] = ports.ArchiveFile{Name: job.name, Data: data}
			entries[i] = domain.ArchiveEntry{Name: job.name, URL: job.url, Size: int64(len(data))}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		uc.logger.Warn("export_failed", "prefix", req.Prefix, "files", len(jobs), "error", err)
		return nil, err
	}

	data, err := uc.archiver.Build(files)
	if err != nil {
		return nil, fmt.Errorf("build archive: %w", err)
	}

	return &domain.Archive{
		Name:    archiveName(req, len(req.Pairs)),
		Entries: entries,
		Data:    data,
	}, nil
}

func (uc *ExportUseCase) plan(req domain.ExportRequest) ([]exportJob, error) {
	const op = "plan export"
	if len(req.Pairs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("at least one file pair is required"))
	}
	if len(req.Pairs) > uc.limits.MaxPairs {
		return nil, domain.WrapError(domain.ErrInvalidInput, op,
			fmt.Errorf("too many file pairs: %d > %d", len(req.Pairs), uc.limits.MaxPairs))
	}

	prefix := sanitizeFilename(req.Prefix)
	start := req.StartIndex
	if start <= 0 {
		start = 1
	}

	jobs := make([]exportJob, 0, len(req.Pairs)*2)
	for i, pair := range req.Pairs {
		index := start + i
		for _, f := range []struct{ ref, ext string }{{pair.MP4, "mp4"}, {pair.HDF5, "hdf5"}} {
			if strings.TrimSpace(f.ref) == "" {
				return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("pair %d is missing its %s reference", index, f.ext))
			}
			target := uc.normalizer.Normalize(strings.TrimSpace(f.ref))
			if err := uc.checkAllowed(target); err != nil {
				return nil, domain.WrapError(domain.ErrInvalidInput, op, err)
			}
			jobs = append(jobs, exportJob{
				name: fmt.Sprintf("%s_%d.%s", prefix, index, f.ext),
				url:  target,
			})
		}
	}
	return jobs, nil
}

func (uc *ExportUseCase) checkAllowed(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid file url %q: %w", raw, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("unsupported file url %q", raw)
	}
	if len(uc.limits.AllowedHostSuffixes) == 0 {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	for _, suffix := range uc.limits.AllowedHostSuffixes {
		suffix = strings.ToLower(strings.TrimSpace(suffix))
		if suffix != "" && (host == strings.TrimPrefix(suffix, ".") || strings.HasSuffix(host, suffix)) {
			return nil
		}
	}
	return fmt.Errorf("host %q is not an allowed file source", host)
}

func archiveName(req domain.ExportRequest, pairs int) string {
	if name := strings.TrimSpace(req.Name); name != "" {
		name = sanitizeFilename(name)
		if !strings.HasSuffix(strings.ToLower(name), ".zip") {
			name += ".zip"
		}
		return name
	}
	prefix := sanitizeFilename(req.Prefix)
	if pairs == 1 {
		start := req.StartIndex
		if start <= 0 {
			start = 1
		}
		return fmt.Sprintf("%s_%d.zip", prefix, start)
	}
	return prefix + "_all.zip"
}

func sanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "demo"
	}
	return base
}
