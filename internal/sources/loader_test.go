package sources

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
)

func TestLoaderLoadEmbeddedDefaults(t *testing.T) {
	file, err := NewLoader("").Load()
	require.NoError(t, err)

	assert.NotEmpty(t, file.UserAgent)
	require.Len(t, file.Sites, 5)

	kinds := map[domain.Source]Kind{}
	for _, s := range file.Sites {
		kinds[s.Source] = s.Kind
		assert.Equal(t, DefaultMaxItems, s.MaxItems, s.Source)
		assert.NotEmpty(t, s.Rows, s.Source)
		assert.NotEmpty(t, s.BaseURL, s.Source)
	}
	assert.Equal(t, KindStatic, kinds[domain.SourcePpomppu])
	assert.Equal(t, KindStatic, kinds[domain.SourceRuliweb])
	assert.Equal(t, KindStatic, kinds[domain.SourceZod])
	assert.Equal(t, KindDynamic, kinds[domain.SourceQuasarzone])
	assert.Equal(t, KindDynamic, kinds[domain.SourceFmkorea])
}

func TestLoaderLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	yamlPath := filepath.Join(tmpDir, "sites.yaml")

	yamlContent := `
sites:
  - source: zod
    kind: static
    list_url: ${HOTDEAL_TEST_ZOD_URL}/deal
    rows: ["a.deal-item"]
    max_items: 5
    timeout: 3s
    fields:
      title: [{selector: "h3.deal-title"}]
      link: [{attr: href}]
  - source: ruliweb
    kind: static
    enabled: false
    list_url: https://bbs.ruliweb.com/market/board/1020
    rows: ["tr.table_body"]
    fields:
      title: [{selector: "a.deco"}]
      link: [{selector: "a.deco", attr: href}]
`
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlContent), 0o644))
	t.Setenv("HOTDEAL_TEST_ZOD_URL", "http://127.0.0.1:9999")

	file, err := NewLoader(yamlPath).Load()
	require.NoError(t, err)
	require.Len(t, file.Sites, 2)

	zod := file.Sites[0]
	assert.Equal(t, "http://127.0.0.1:9999/deal", zod.ListURL)
	assert.Equal(t, zod.ListURL, zod.BaseURL, "base url defaults to list url")
	assert.Equal(t, 5, zod.MaxItems)
	assert.Equal(t, 3*time.Second, zod.Timeout)
	assert.Equal(t, domain.AuthorUnknown, zod.DefaultAuthor)
	assert.Equal(t, DefaultUserAgent, file.UserAgent)

	enabled := file.Enabled()
	require.Len(t, enabled, 1)
	assert.Equal(t, domain.SourceZod, enabled[0].Source)
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	_, err := NewLoader("/nonexistent/path/sites.yaml").Load()
	assert.Error(t, err)
}

func TestParseRejectsInvalidSites(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown source", `
sites:
  - source: clien
    kind: static
    list_url: https://clien.net
    rows: ["tr"]
    fields: {title: [{selector: a}], link: [{selector: a, attr: href}]}
`},
		{"unknown kind", `
sites:
  - source: zod
    kind: rss
    list_url: https://zod.kr/deal
    rows: ["tr"]
    fields: {title: [{selector: a}], link: [{selector: a, attr: href}]}
`},
		{"relative list url", `
sites:
  - source: zod
    kind: static
    list_url: /deal
    rows: ["tr"]
    fields: {title: [{selector: a}], link: [{selector: a, attr: href}]}
`},
		{"missing link rules", `
sites:
  - source: zod
    kind: static
    list_url: https://zod.kr/deal
    rows: ["tr"]
    fields: {title: [{selector: a}]}
`},
		{"duplicate source", `
sites:
  - source: zod
    kind: static
    list_url: https://zod.kr/deal
    rows: ["tr"]
    fields: {title: [{selector: a}], link: [{selector: a, attr: href}]}
  - source: zod
    kind: static
    list_url: https://zod.kr/deal
    rows: ["tr"]
    fields: {title: [{selector: a}], link: [{selector: a, attr: href}]}
`},
		{"no sites", `sites: []`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestExpandEnvKeepsUnsetAndBareDollars(t *testing.T) {
	t.Setenv("HOTDEAL_TEST_HOST", "example.com")
	got := string(expandEnv([]byte("a: https://${HOTDEAL_TEST_HOST}/x\nb: ${HOTDEAL_TEST_UNSET}\nc: 12.99$")))
	assert.Equal(t, "a: https://example.com/x\nb: ${HOTDEAL_TEST_UNSET}\nc: 12.99$", got)
}
