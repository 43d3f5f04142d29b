package install

import (
	"fmt"
	"strings"

	"github.com/CloudNativeWorks/mod-updater/internal/config"
)

// Mode selects where the managed artifact lives.
type Mode string

const (
	ModeMods      Mode = "mods"
	ModeClientJar Mode = "clientJar"
	ModeJarmods   Mode = "jarmods"
)

// ParseMode accepts a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mods":
		return ModeMods, nil
	case "clientjar":
		return ModeClientJar, nil
	case "jarmods", "":
		return ModeJarmods, nil
	default:
		return "", fmt.Errorf("%w: unknown install mode %q (want mods, clientJar or jarmods)", config.ErrInvalid, s)
	}
}

func (m Mode) String() string {
	return string(m)
}
