package release

import (
	"errors"
	"fmt"
	"time"
)

// Descriptor is one published release as returned by the releases API.
type Descriptor struct {
	Tag        string
	Name       string
	Body       string
	HTMLURL    string
	ZipballURL string
	Assets     []Asset
}

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name string
	URL  string
}

// ErrNoMatchingAsset is returned by SelectAsset when no asset name matches.
var ErrNoMatchingAsset = errors.New("no release asset matches pattern")

// ErrInvalidPattern wraps a pattern that does not compile.
var ErrInvalidPattern = errors.New("invalid asset pattern")

// StatusError is a non-success API response other than the handled 404.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GitHub API error: HTTP %d for %s\n%s", e.Code, e.URL, e.Body)
}

// Constants
const (
	DefaultAPIBaseURL = "https://api.github.com"
	DefaultTimeout    = 15 * time.Second
	acceptHeader      = "application/vnd.github+json"
	maxBodyBytes      = 8 << 20
)
