package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
	"github.com/asimovlabs/egodata-portal/internal/core/ports"
)

const (
	rrdExtension         = ".rrd"
	defaultRerunVersion  = "0.27.2"
	rerunViewerURLFormat = "https://app.rerun.io/version/%s/index.html?url=%s"
)

// ExploreUseCase builds the dataset tree shown by the explore viewer. A
// bucket listing is preferred; the static catalog is used when no lister is
// configured or the listing is empty.
type ExploreUseCase struct {
	lister       ports.ObjectLister
	catalog      ports.DatasetCatalog
	prefix       string
	rerunVersion string
	logger       *slog.Logger
}

func NewExploreUseCase(
	lister ports.ObjectLister,
	catalog ports.DatasetCatalog,
	prefix string,
	rerunVersion string,
	logger *slog.Logger,
) *ExploreUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(rerunVersion) == "" {
		rerunVersion = defaultRerunVersion
	}
	return &ExploreUseCase{
		lister:       lister,
		catalog:      catalog,
		prefix:       prefix,
		rerunVersion: strings.TrimSpace(rerunVersion),
		logger:       logger,
	}
}

func (uc *ExploreUseCase) ListDatasets(ctx context.Context) ([]domain.Dataset, error) {
	var datasets []domain.Dataset
	if uc.lister != nil {
		objects, err := uc.lister.List(ctx, uc.prefix)
		if err != nil {
			if uc.catalog == nil {
				return nil, fmt.Errorf("list recordings: %w", err)
			}
			uc.logger.Warn("explore_listing_failed", "prefix", uc.prefix, "error", err)
		} else {
			datasets = DatasetsFromObjects(objects, uc.prefix, uc.lister.ObjectURL)
		}
	}

	if len(datasets) == 0 && uc.catalog != nil {
		fromCatalog, err := uc.catalog.Datasets(ctx)
		if err != nil {
			return nil, fmt.Errorf("load dataset catalog: %w", err)
		}
		datasets = fromCatalog
	}

	if datasets == nil {
		datasets = []domain.Dataset{}
	}
	for i := range datasets {
		for j := range datasets[i].Demos {
			demo := &datasets[i].Demos[j]
			viewer, err := uc.ViewerURL(demo.RRDURL)
			if err != nil {
				uc.logger.Warn("explore_demo_skipped", "demo", demo.ID, "error", err)
				continue
			}
			demo.ViewerURL = viewer
		}
	}
	return datasets, nil
}

// ViewerURL returns the hosted Rerun viewer address that loads rrdURL.
func (uc *ExploreUseCase) ViewerURL(rrdURL string) (string, error) {
	rrdURL = strings.TrimSpace(rrdURL)
	u, err := url.Parse(rrdURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "build viewer url", fmt.Errorf("invalid recording url %q", rrdURL))
	}
	return fmt.Sprintf(rerunViewerURLFormat, uc.rerunVersion, domain.EscapeComponent(rrdURL)), nil
}

// DatasetsFromObjects groups .rrd keys by their parent directory under
// prefix. Keys directly under prefix land in a dataset named after prefix.
func DatasetsFromObjects(objects []domain.StoredObject, prefix string, objectURL func(string) string) []domain.Dataset {
	byDir := make(map[string][]domain.StoredObject)
	for _, obj := range objects {
		if !strings.HasSuffix(strings.ToLower(obj.Key), rrdExtension) {
			continue
		}
		rel := strings.TrimPrefix(obj.Key, prefix)
		dir := path.Dir(strings.TrimPrefix(rel, "/"))
		if dir == "." {
			dir = path.Base(strings.TrimSuffix(prefix, "/"))
			if dir == "." || dir == "/" || dir == "" {
				dir = "recordings"
			}
		}
		byDir[dir] = append(byDir[dir], obj)
	}

	names := make([]string, 0, len(byDir))
	for name := range byDir {
		names = append(names, name)
	}
	sort.Strings(names)

	datasets := make([]domain.Dataset, 0, len(names))
	for i, name := range names {
		objs := byDir[name]
		sort.Slice(objs, func(a, b int) bool { return objs[a].Key < objs[b].Key })

		datasetID := strconv.Itoa(i + 1)
		demos := make([]domain.Demo, 0, len(objs))
		for j, obj := range objs {
			demos = append(demos, domain.Demo{
				ID:     fmt.Sprintf("%s-%d", datasetID, j+1),
				Name:   strings.TrimSuffix(path.Base(obj.Key), path.Ext(obj.Key)),
				RRDURL: objectURL(obj.Key),
			})
		}
		datasets = append(datasets, domain.Dataset{ID: datasetID, Name: name, Demos: demos})
	}
	return datasets
}

// SessionGate exchanges the shared explore password for expiring bearer
// tokens. An empty password disables the gate.
type SessionGate struct {
	password string
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]time.Time
}

func NewSessionGate(password string, ttl time.Duration) *SessionGate {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionGate{
		password: password,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]time.Time),
	}
}

func (g *SessionGate) Enabled() bool {
	return g.password != ""
}

func (g *SessionGate) Open(password string) (*domain.ExploreSession, error) {
	if g.Enabled() && subtle.ConstantTimeCompare([]byte(password), []byte(g.password)) != 1 {
		return nil, domain.WrapError(domain.ErrUnauthorized, "open explore session", errors.New("incorrect password"))
	}

	now := g.now()
	session := &domain.ExploreSession{
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(g.ttl).UTC(),
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked(now)
	g.sessions[session.Token] = session.ExpiresAt
	return session, nil
}

func (g *SessionGate) Authorize(token string) error {
	if !g.Enabled() {
		return nil
	}
	const op = "authorize explore session"
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.WrapError(domain.ErrUnauthorized, op, errors.New("missing session token"))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	expiresAt, ok := g.sessions[token]
	if !ok {
		return domain.WrapError(domain.ErrUnauthorized, op, errors.New("unknown session token"))
	}
	if !g.now().Before(expiresAt) {
		delete(g.sessions, token)
		return domain.WrapError(domain.ErrUnauthorized, op, errors.New("session expired"))
	}
	return nil
}

func (g *SessionGate) pruneLocked(now time.Time) {
	for token, expiresAt := range g.sessions {
		if !now.Before(expiresAt) {
			delete(g.sessions, token)
		}
	}
}
