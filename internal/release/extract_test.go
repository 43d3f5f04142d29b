package release

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRelease = `{
  "url": "https://api.github.com/repos/acme/mod/releases/1",
  "html_url": "https://github.com/acme/mod/releases/tag/v2.0",
  "tag_name": "v2.0",
  "name": "Release \"two\" [stable]",
  "body": "Fixes: {crash} in ] and [ \\ path\nSee \u00e9t\u00e9 \ud83d\ude00",
  "assets": [
    {
      "name": "mod-2.0.jar",
      "uploader": {"login": "bot", "name": "weird ] } name"},
      "browser_download_url": "https://github.com/acme/mod/releases/download/v2.0/mod-2.0.jar"
    },
    {
      "name": "mod-2.0-sources.jar",
      "browser_download_url": "https://github.com/acme/mod/releases/download/v2.0/mod-2.0-sources.jar"
    },
    {
      "name": "no-url.txt"
    }
  ],
  "zipball_url": "https://api.github.com/repos/acme/mod/zipball/v2.0"
}`

func TestParseDescriptor(t *testing.T) {
	d := ParseDescriptor(sampleRelease)

	assert.Equal(t, "v2.0", d.Tag)
	assert.Equal(t, `Release "two" [stable]`, d.Name)
	assert.Equal(t, "Fixes: {crash} in ] and [ \\ path\nSee été 😀", d.Body)
	assert.Equal(t, "https://github.com/acme/mod/releases/tag/v2.0", d.HTMLURL)
	assert.Equal(t, "https://api.github.com/repos/acme/mod/zipball/v2.0", d.ZipballURL)

	require.Len(t, d.Assets, 2)
	assert.Equal(t, "mod-2.0.jar", d.Assets[0].Name)
	assert.Equal(t, "https://github.com/acme/mod/releases/download/v2.0/mod-2.0.jar", d.Assets[0].URL)
	assert.Equal(t, "mod-2.0-sources.jar", d.Assets[1].Name)
}

func TestExtractScalar(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
		want  string
		found bool
	}{
		{"first occurrence wins", `{"name":"a","x":{"name":"b"}}`, "name", "a", true},
		{"key inside string is ignored", `{"body":"\"tag_name\": \"fake\"","tag_name":"real"}`, "tag_name", "real", true},
		{"non string value skipped", `{"name":null,"inner":{"name":"b"}}`, "name", "b", true},
		{"missing", `{"other":"x"}`, "name", "", false},
		{"escapes", `{"v":"a\/b\tc\\d\"e"}`, "v", "a/b\tc\\d\"e", true},
		{"bad unicode escape", `{"v":"x\uZZZZy"}`, "v", "x?y", true},
		{"lone surrogate", `{"v":"x\ud83dy"}`, "v", "x?y", true},
		{"truncated unicode escape", `{"v":"x\u12"}`, "v", "x?", true},
		{"whitespace around colon", "{\"v\" \n:\t \"ok\"}", "v", "ok", true},
		{"unterminated string", `{"v":"abc`, "v", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractScalar(tt.doc, tt.field)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractAssetsRobustness(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want int
	}{
		{"absent", `{"tag_name":"v1"}`, 0},
		{"empty", `{"assets":[]}`, 0},
		{"null", `{"assets":null}`, 0},
		{"unterminated", `{"assets":[{"name":"a","browser_download_url":"u"}`, 0},
		{"escaped quote and brackets in strings", `{"assets":[{"name":"a \"]}\" b","browser_download_url":"u1"},{"name":"c","browser_download_url":"u2"}]}`, 2},
		{"assets word inside a string", `{"body":"\"assets\": [{\"name\":\"x\",\"browser_download_url\":\"y\"}]","assets":[]}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractAssets(tt.doc)
			require.NotNil(t, got)
			assert.Len(t, got, tt.want)
		})
	}

	got := ExtractAssets(`{"assets":[{"name":"a \"]}\" b","browser_download_url":"u1"}]}`)
	require.Len(t, got, 1)
	assert.Equal(t, `a "]}" b`, got[0].Name)
}

func TestParseFirstDescriptor(t *testing.T) {
	list := `[ {"tag_name":"v3","assets":[{"name":"a.jar","browser_download_url":"u"}],"body":"}]"}, {"tag_name":"v2"} ]`
	d := ParseFirstDescriptor(list)
	assert.Equal(t, "v3", d.Tag)
	require.Len(t, d.Assets, 1)
	assert.Equal(t, "a.jar", d.Assets[0].Name)

	empty := ParseFirstDescriptor("[]")
	assert.Empty(t, empty.Tag)
	assert.NotNil(t, empty.Assets)
	assert.Empty(t, empty.Assets)

	single := ParseFirstDescriptor(`{"tag_name":"v1"}`)
	assert.Equal(t, "v1", single.Tag)
}
