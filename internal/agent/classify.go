package agent

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/url"
	"os"

	"github.com/CloudNativeWorks/mod-updater/internal/config"
	"github.com/CloudNativeWorks/mod-updater/internal/release"
)

// Kind groups failures by what the user can do about them.
type Kind int

const (
	KindNone Kind = iota
	KindConfig
	KindResolution
	KindFilesystem
	KindCanceled
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConfig:
		return "configuration"
	case KindResolution:
		return "resolution"
	case KindFilesystem:
		return "filesystem"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by the pipeline onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var (
		statusErr *release.StatusError
		urlErr    *url.Error
		netErr    net.Error
		pathErr   *fs.PathError
		linkErr   *os.LinkError
		sysErr    *os.SyscallError
	)
	switch {
	case errors.Is(err, config.ErrInvalid), errors.Is(err, release.ErrInvalidPattern):
		return KindConfig
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &statusErr), errors.Is(err, release.ErrNoMatchingAsset),
		errors.As(err, &urlErr), errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded):
		return KindResolution
	case errors.As(err, &pathErr), errors.As(err, &linkErr), errors.As(err, &sysErr):
		return KindFilesystem
	default:
		return KindUnknown
	}
}
