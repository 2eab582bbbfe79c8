package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/store"
	"github.com/a11ykraft/a11ykraft/internal/domain"
	"github.com/a11ykraft/a11ykraft/internal/domain/aggregate"
)

func openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "db", "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReport(site string, at time.Time, imageAltCount int) domain.SiteWideReport {
	v := domain.ProcessedViolation{
		RuleID:          "image-alt",
		Impact:          domain.ImpactCritical,
		Description:     "Images must have alternate text",
		WCAGTags:        []string{"wcag2a", "wcag111"},
		OccurrenceCount: imageAltCount,
	}
	results := []domain.PageAnalysisResult{
		{URL: site + "/", Timestamp: at, ToolsInvoked: []string{"htmlcheck"}, Violations: []domain.ProcessedViolation{v},
			Summary: domain.SummarizeViolations([]domain.ProcessedViolation{v})},
		{URL: site + "/about", Timestamp: at, ToolsInvoked: []string{"htmlcheck"}, Violations: []domain.ProcessedViolation{}},
	}
	r := aggregate.BuildSiteWideReport(results, site, domain.LevelAA)
	r.CommitHash = "deadbeef"
	return r
}

func TestSQLiteStore_SaveAndLatest(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

	first := sampleReport("https://example.com", at, 3)
	id1, err := s.Save(ctx, &first)
	require.NoError(t, err)
	second := sampleReport("https://example.com", at.Add(time.Hour), 1)
	id2, err := s.Save(ctx, &second)
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	latest, err := s.Latest(ctx, "https://example.com")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 1, latest.Summary.TotalViolations)
	assert.Equal(t, "deadbeef", latest.CommitHash)
	assert.True(t, second.Timestamp.Equal(latest.Timestamp))
	assert.Len(t, latest.PageReports, 2)
	assert.Contains(t, latest.WCAGComplianceMatrix, "1.1.1 image-alt")
}

func TestSQLiteStore_LatestUnknownSite(t *testing.T) {
	latest, err := openStore(t).Latest(context.Background(), "https://nowhere.test")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSQLiteStore_List(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

	for i, site := range []string{"https://a.test", "https://b.test", "https://a.test"} {
		r := sampleReport(site, at.Add(time.Duration(i)*time.Minute), i+1)
		_, err := s.Save(ctx, &r)
		require.NoError(t, err)
	}

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	onlyA, err := s.List(ctx, "https://a.test", 10)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, 3, onlyA[0].TotalViolations, "newest first")
	assert.Equal(t, "2026-04-01T09:32:00Z", onlyA[0].Timestamp)
	assert.Equal(t, 50.0, onlyA[0].CompliancePercentage)

	limited, err := s.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStore_RuleTrend(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	for _, n := range []int{5, 3, 1} {
		r := sampleReport("https://example.com", at, n)
		_, err := s.Save(ctx, &r)
		require.NoError(t, err)
	}
	clean := aggregate.BuildSiteWideReport([]domain.PageAnalysisResult{{URL: "https://example.com/", Timestamp: at}}, "https://example.com", "")
	_, err := s.Save(ctx, &clean)
	require.NoError(t, err)

	trend, err := s.RuleTrend(ctx, "https://example.com", "image-alt")
	require.NoError(t, err)
	assert.Equal(t, []int{5, 3, 1, 0}, trend)
}
