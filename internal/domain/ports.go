package domain

import (
	"context"
	"encoding/json"
)

// PageHandle is a live or static view of one page. A handle is owned by the
// task that opened it and is never shared across concurrent tasks.
type PageHandle interface {
	URL() string
	HTML(ctx context.Context) (string, error)
	// Evaluate runs a JavaScript function expression in the page and returns
	// its JSON-encoded result.
	Evaluate(ctx context.Context, script string) (json.RawMessage, error)
	BoundingBox(ctx context.Context, selector string) (*BoundingBox, error)
	// Screenshot captures the element matched by selector as PNG.
	Screenshot(ctx context.Context, selector string) ([]byte, error)
	// ResolveSelector returns a unique CSS path for the first element matching selector.
	ResolveSelector(ctx context.Context, selector string) (string, error)
	Closed() bool
	Close() error
}

// PageOpener opens a fresh page handle for a target.
type PageOpener interface {
	Open(ctx context.Context, target PageTarget) (PageHandle, error)
}

// RuleEngine inspects a page and reports findings in its own format.
type RuleEngine interface {
	Name() string
	Run(ctx context.Context, page PageHandle) (*RawToolOutput, error)
}

// PageDiscoverer finds the pages of a site.
type PageDiscoverer interface {
	Discover(ctx context.Context, siteURL string, limit int) ([]PageTarget, error)
}

// ConfigLoader loads scan configuration for a project directory.
type ConfigLoader interface {
	Load(projectPath string) (ScanConfig, error)
}

// ReportHistory persists compliance trend entries.
type ReportHistory interface {
	Save(projectPath string, entry ReportEntry) error
	Load(projectPath string) ([]ReportEntry, error)
}

// ReportStore archives full site-wide reports.
type ReportStore interface {
	Save(ctx context.Context, report *SiteWideReport) (int64, error)
	Latest(ctx context.Context, siteURL string) (*SiteWideReport, error)
}

// GitInfo provides version control metadata.
type GitInfo interface {
	IsGitRepo(projectPath string) bool
	CommitHash(projectPath string) (string, error)
}
