package htmlcheck_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/browser/static"
	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/engine/htmlcheck"
	"github.com/a11ykraft/a11ykraft/internal/domain"
	"github.com/a11ykraft/a11ykraft/internal/domain/normalize"
)

const brokenPage = `<!doctype html>
<html>
<head><meta name="viewport" content="width=device-width, user-scalable=no"></head>
<body>
  <header id="top"><a href="/"><img src="logo.png"></a></header>
  <main>
    <h1></h1>
    <img src="hero.png" alt="">
    <img src="chart.png">
    <img src="spacer.gif" role="presentation">
    <form>
      <label for="email">Email</label><input id="email" type="email">
      <input type="text" name="q">
      <label>Name <input type="text" name="name"></label>
      <input type="hidden" name="token">
      <select name="country"></select>
      <textarea aria-label="Comments"></textarea>
      <button></button>
      <button aria-label="Close">x</button>
      <input type="submit">
      <input type="image" src="go.png">
    </form>
    <iframe src="/embed"></iframe>
    <a href="/more">Read more</a>
    <a href="/icon"><svg><title>Settings</title></svg></a>
  </main>
  <footer id="top"></footer>
</body>
</html>`

const cleanPage = `<!doctype html>
<html lang="en">
<head><title>Clean</title><meta name="viewport" content="width=device-width, initial-scale=1"></head>
<body><main><h1>Welcome</h1><img src="a.png" alt="A"><a href="/x">X</a></main></body>
</html>`

type axeResult struct {
	Violations []struct {
		ID      string   `json:"id"`
		Impact  string   `json:"impact"`
		Tags    []string `json:"tags"`
		HelpURL string   `json:"helpUrl"`
		Nodes   []struct {
			HTML           string   `json:"html"`
			Target         []string `json:"target"`
			FailureSummary string   `json:"failureSummary"`
		} `json:"nodes"`
	} `json:"violations"`
}

func run(t *testing.T, e *htmlcheck.Engine, src string) (axeResult, *domain.RawToolOutput) {
	t.Helper()
	page, err := static.NewPage("https://example.com/", src)
	require.NoError(t, err)
	out, err := e.Run(context.Background(), page)
	require.NoError(t, err)
	require.NotNil(t, out)

	var res axeResult
	require.NoError(t, json.Unmarshal(out.Payload, &res))
	return res, out
}

func nodeCounts(res axeResult) map[string]int {
	counts := make(map[string]int)
	for _, v := range res.Violations {
		counts[v.ID] = len(v.Nodes)
	}
	return counts
}

func TestEngine_BrokenPage(t *testing.T) {
	res, out := run(t, htmlcheck.New(), brokenPage)

	assert.Equal(t, domain.EngineHTMLCheck, out.Engine)
	assert.Equal(t, domain.FormatAxe, out.Format)

	assert.Equal(t, map[string]int{
		"image-alt":       2, // logo and chart; empty alt and presentation are fine
		"input-image-alt": 1,
		"html-has-lang":   1,
		"document-title":  1,
		"label":           2, // q and country
		"link-name":       1,
		"button-name":     1,
		"frame-title":     1,
		"duplicate-id":    1,
		"meta-viewport":   1,
		"empty-heading":   1,
	}, nodeCounts(res))
}

func TestEngine_NodeDetails(t *testing.T) {
	res, _ := run(t, htmlcheck.New("image-alt"), brokenPage)
	require.Len(t, res.Violations, 1)

	v := res.Violations[0]
	assert.Equal(t, "critical", v.Impact)
	assert.Contains(t, v.Tags, "wcag111")
	assert.Equal(t, "https://dequeuniversity.com/rules/axe/4.10/image-alt", v.HelpURL)
	require.Len(t, v.Nodes, 2)
	assert.Equal(t, []string{"html > body > main > img:nth-of-type(2)"}, v.Nodes[1].Target)
	assert.Equal(t, `<img src="chart.png"/>`, v.Nodes[1].HTML)
	assert.Contains(t, v.Nodes[1].FailureSummary, "alt attribute")
}

func TestEngine_CleanPage(t *testing.T) {
	res, _ := run(t, htmlcheck.New(), cleanPage)
	assert.Empty(t, res.Violations)
}

func TestEngine_RuleSelection(t *testing.T) {
	e := htmlcheck.New("label", "unknown-rule")
	assert.Equal(t, []string{"label"}, e.RuleIDs())
	assert.Len(t, htmlcheck.New().RuleIDs(), 11)
}

func TestEngine_ClosedPage(t *testing.T) {
	page, err := static.NewPage("https://example.com/", cleanPage)
	require.NoError(t, err)
	require.NoError(t, page.Close())

	_, err = htmlcheck.New().Run(context.Background(), page)
	assert.ErrorIs(t, err, domain.ErrPageClosed)
}

// htmlOnlyPage exposes only the PageHandle methods.
type htmlOnlyPage struct {
	domain.PageHandle
	src string
}

func (p htmlOnlyPage) URL() string                              { return "https://example.com/" }
func (p htmlOnlyPage) HTML(ctx context.Context) (string, error) { return p.src, nil }

func TestEngine_ParsesHTMLWhenNoDocument(t *testing.T) {
	out, err := htmlcheck.New("html-has-lang").Run(context.Background(), htmlOnlyPage{src: "<html><body></body></html>"})
	require.NoError(t, err)
	assert.Contains(t, string(out.Payload), `"html-has-lang"`)
}

func TestEngine_OutputNormalizes(t *testing.T) {
	page, err := static.NewPage("https://example.com/", brokenPage)
	require.NoError(t, err)
	out, err := htmlcheck.New().Run(context.Background(), page)
	require.NoError(t, err)

	violations, err := normalize.New(nil, nil).Normalize(context.Background(), page, []*domain.RawToolOutput{out}, false)
	require.NoError(t, err)
	require.NotEmpty(t, violations)

	assert.Equal(t, domain.ImpactCritical, violations[0].Impact)
	for _, v := range violations {
		assert.Equal(t, []string{domain.EngineHTMLCheck}, v.ContributingTools)
		assert.Equal(t, len(v.Elements), v.OccurrenceCount)
	}
}
