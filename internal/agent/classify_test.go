package agent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CloudNativeWorks/mod-updater/internal/config"
	"github.com/CloudNativeWorks/mod-updater/internal/release"
)

func TestClassify(t *testing.T) {
	_, statErr := os.Stat("/definitely/not/here")

	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{fmt.Errorf("wrap: %w", config.ErrInvalid), KindConfig},
		{fmt.Errorf("%w x", release.ErrInvalidPattern), KindConfig},
		{&release.StatusError{Code: 500}, KindResolution},
		{fmt.Errorf("%w in acme/mod", release.ErrNoMatchingAsset), KindResolution},
		{&url.Error{Op: "Get", URL: "u", Err: errors.New("dial tcp: refused")}, KindResolution},
		{fmt.Errorf("install: %w", statErr), KindFilesystem},
		{&os.LinkError{Op: "rename", Err: errors.New("cross-device")}, KindFilesystem},
		{fmt.Errorf("x: %w", context.Canceled), KindCanceled},
		{errors.New("mystery"), KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}

func TestPromptConfirmer(t *testing.T) {
	for answer, want := range map[string]bool{"\n": true, "y\n": true, "YES\n": true, "n\n": false, "later\n": false, "": true} {
		out := &strings.Builder{}
		ok, err := PromptConfirmer{In: strings.NewReader(answer), Out: out}.Confirm(context.Background(), Snapshot{Latest: "v2", Asset: "patch.jar"})
		assert.NoError(t, err)
		assert.Equal(t, want, ok, "answer %q", answer)
		assert.Contains(t, out.String(), "[Y/n]")
	}
}
