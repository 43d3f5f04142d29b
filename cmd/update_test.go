package cmd

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateDryRunWritesNothing(t *testing.T) {
	var downloads int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/repos/acme/patches/releases") {
			fmt.Fprintf(w, `{"tag_name":"v2.0","assets":[{"name":"patch.jar","browser_download_url":"%s/dl/patch.jar"}]}`, srv.URL)
			return
		}
		atomic.AddInt32(&downloads, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()
	t.Setenv("MODUPDATER_API_BASE_URL", srv.URL)

	inst := t.TempDir()
	RootCmd.SetArgs([]string{"update", "--dry-run", "--strict", "--yes", "--beta=false",
		"--instance-dir", inst, "--repo", "acme/patches"})
	require.NoError(t, RootCmd.Execute())

	entries, err := os.ReadDir(inst)
	require.NoError(t, err)
	assert.Empty(t, entries, "no config, log or artifact written")
	assert.Equal(t, int32(0), atomic.LoadInt32(&downloads))
}
