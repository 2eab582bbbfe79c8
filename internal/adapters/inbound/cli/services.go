package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/browser/chromium"
	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/browser/static"
	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/config"
	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/discovery"
	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/engine/axe"
	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/engine/htmlcheck"
	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/engine/pa11y"
	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/gitinfo"
	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/history"
	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/logging"
	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/store"
	"github.com/a11ykraft/a11ykraft/internal/application"
	"github.com/a11ykraft/a11ykraft/internal/domain"
	"github.com/a11ykraft/a11ykraft/internal/domain/normalize"
)

// services is the object graph behind every command that touches pages.
type services struct {
	projectPath string
	cfg         domain.ScanConfig
	log         *logrus.Logger
	analysis    *application.AnalysisService
	reports     *application.ReportService
	store       *store.SQLiteStore
	closers     []func() error
}

// newServices loads the project configuration and wires adapters into the
// application services. Callers must Close the result.
func newServices(ctx context.Context, projectPath string) (*services, error) {
	cfg, err := config.New().Load(projectPath)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	s := &services{projectPath: projectPath, cfg: cfg, log: log}

	opener, err := s.newOpener()
	if err != nil {
		return nil, err
	}
	engines, err := newEngines(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	analyzer := application.NewPageAnalyzer(opener, engines, normalize.New(nil, log), log)
	pool := application.NewWorkerPool(analyzer, log)
	s.analysis = application.NewAnalysisService(pool, log)

	var hist domain.ReportHistory
	if cfg.Storage.History {
		hist = history.New()
	}

	// The report archive is optional; a scan still works without it.
	var archive domain.ReportStore
	if cfg.Storage.Database != "" {
		st, err := store.Open(ctx, databasePath(projectPath, cfg.Storage.Database))
		if err != nil {
			log.WithError(err).Warn("report archive disabled")
		} else {
			s.store = st
			s.closers = append(s.closers, st.Close)
			archive = st
		}
	}

	client := static.NewHTTPClient(pageTimeout(cfg))
	disc := discovery.New(client, cfg.Browser.UserAgent, log)

	s.reports = application.NewReportService(s.analysis, disc, gitinfo.New(), hist, archive, log)
	return s, nil
}

func (s *services) newOpener() (domain.PageOpener, error) {
	switch s.cfg.Browser.Mode {
	case domain.BrowserRod:
		o := chromium.NewOpener(s.cfg.Browser, s.log)
		s.closers = append(s.closers, o.Close)
		return o, nil
	case domain.BrowserStatic, "":
		return static.NewOpener(
			static.WithHTTPClient(static.NewHTTPClient(pageTimeout(s.cfg))),
			static.WithUserAgent(s.cfg.Browser.UserAgent),
		), nil
	default:
		return nil, fmt.Errorf("unknown browser mode %q", s.cfg.Browser.Mode)
	}
}

func newEngines(cfg domain.ScanConfig) ([]domain.RuleEngine, error) {
	engines := make([]domain.RuleEngine, 0, len(cfg.Engines))
	for _, name := range cfg.Engines {
		switch name {
		case domain.EngineHTMLCheck:
			engines = append(engines, htmlcheck.New())
		case domain.EngineAxe:
			e, err := axe.New(cfg.Axe)
			if err != nil {
				return nil, err
			}
			engines = append(engines, e)
		case domain.EnginePa11y:
			engines = append(engines, pa11y.New(cfg.Pa11y, pa11y.ExecRunner))
		default:
			return nil, fmt.Errorf("unknown engine %q", name)
		}
	}
	return engines, nil
}

// Close releases the browser and the report archive.
func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.WithError(err).Warn("closing resource")
		}
	}
	s.closers = nil
}

func pageTimeout(cfg domain.ScanConfig) time.Duration {
	return time.Duration(cfg.Analysis.PageTimeoutMs) * time.Millisecond
}

func databasePath(projectPath, db string) string {
	if db == ":memory:" || filepath.IsAbs(db) {
		return db
	}
	return filepath.Join(projectPath, db)
}

func absProjectPath(path string) (string, error) {
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return abs, nil
}
