package cli_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a11ykraft/a11ykraft/internal/adapters/inbound/cli"
)

const (
	brokenPage = `<!doctype html><html lang="en"><head><title>Home</title></head><body><img src="a.png"></body></html>`
	cleanPage  = `<!doctype html><html lang="en"><head><title>Home</title></head><body><main><h1>Hi</h1><img src="a.png" alt="A"></main></body></html>`

	projectConfig = `log:
  level: error
analysis:
  delay_between_batches_ms: 0
  base_backoff_ms: 1
storage:
  history: true
  database: .a11ykraft/reports.db
`
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmdForTest()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".a11ykraft.yaml"), []byte(projectConfig), 0644))
	return dir
}

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScanCommand_JSON(t *testing.T) {
	srv := serve(t, brokenPage)
	dir := project(t)

	out, err := run(t, "scan", srv.URL+"/", srv.URL+"/about", "--path", dir, "--json")
	require.NoError(t, err)

	var result struct {
		State  string `json:"state"`
		Report struct {
			SiteURL string `json:"site_url"`
			Summary struct {
				TotalPages           int     `json:"total_pages"`
				TotalViolations      int     `json:"total_violations"`
				CompliancePercentage float64 `json:"compliance_percentage"`
			} `json:"summary"`
		} `json:"report"`
		ReportID int64 `json:"report_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "completed", result.State)
	assert.Equal(t, srv.URL, result.Report.SiteURL)
	assert.Equal(t, 2, result.Report.Summary.TotalPages)
	assert.Equal(t, 2, result.Report.Summary.TotalViolations)
	assert.Equal(t, 0.0, result.Report.Summary.CompliancePercentage)
	assert.Positive(t, result.ReportID)
	assert.FileExists(t, filepath.Join(dir, ".a11ykraft", "reports.db"))
}

func TestScanCommand_DefaultTUI(t *testing.T) {
	srv := serve(t, brokenPage)

	out, err := run(t, "scan", srv.URL+"/", srv.URL+"/missing", "--path", project(t))
	require.NoError(t, err)
	assert.Contains(t, out, "a11ykraft")
	assert.Contains(t, out, "image-alt")
	assert.Contains(t, out, "Failed pages")
	assert.Contains(t, out, "status 404")
}

func TestScanCommand_CIFails(t *testing.T) {
	srv := serve(t, brokenPage)
	_, err := run(t, "scan", srv.URL+"/", "--path", project(t), "--ci", "--min", "50")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below minimum")
}

func TestScanCommand_CIFailsOnFailedPage(t *testing.T) {
	srv := serve(t, cleanPage)
	_, err := run(t, "scan", srv.URL+"/", srv.URL+"/missing", "--path", project(t), "--ci")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be analyzed")
}

func TestScanCommand_CIPasses(t *testing.T) {
	srv := serve(t, cleanPage)
	_, err := run(t, "scan", srv.URL+"/", "--path", project(t), "--ci", "--min", "100")
	assert.NoError(t, err)
}

func TestScanCommand_SiteWithoutSitemap(t *testing.T) {
	srv := serve(t, cleanPage)
	out, err := run(t, "scan", "--site", srv.URL, "--path", project(t), "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_pages": 1`)
}

func TestScanCommand_InvalidLevel(t *testing.T) {
	srv := serve(t, cleanPage)
	_, err := run(t, "scan", srv.URL+"/", "--path", project(t), "--level", "B")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown level")
}

func TestScanCommand_NoTargets(t *testing.T) {
	_, err := run(t, "scan", "--path", project(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "site url")
}

func TestScanCommand_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".a11ykraft.yaml"), []byte("engines: [lighthouse]\n"), 0644))
	_, err := run(t, "scan", "https://example.com/", "--path", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown engine")
}

func TestReportAndHistoryCommands(t *testing.T) {
	srv := serve(t, brokenPage)
	dir := project(t)

	for range 2 {
		_, err := run(t, "scan", srv.URL+"/", "--path", dir, "--json")
		require.NoError(t, err)
	}

	out, err := run(t, "report", srv.URL, "--path", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "0.00% compliant")
	assert.Contains(t, out, "image-alt")

	out, err = run(t, "report", srv.URL, "--path", dir, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"wcag_compliance_matrix"`)

	out, err = run(t, "history", srv.URL, "--path", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Compliance History")
	assert.Contains(t, out, "1 violations")

	out, err = run(t, "history", srv.URL, "--path", dir, "--archive")
	require.NoError(t, err)
	assert.Contains(t, out, "Compliance History")

	out, err = run(t, "history", srv.URL, "--path", dir, "--rule", "image-alt")
	require.NoError(t, err)
	assert.Contains(t, out, "image-alt: 1 → 1")
}

func TestReportCommand_NothingArchived(t *testing.T) {
	_, err := run(t, "report", "https://example.com", "--path", project(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no archived report")
}

func TestHistoryCommand_Empty(t *testing.T) {
	out, err := run(t, "history", "--path", project(t))
	require.NoError(t, err)
	assert.Contains(t, out, "No report history found.")
}
