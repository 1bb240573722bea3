package downloader

import (
	"fmt"
	"io"

	"e621dl/pkg/config"
	"e621dl/pkg/ui"
)

// SafeModeToggler switches the API client to the safe host
type SafeModeToggler interface {
	UpdateToSafe()
}

// ShouldEnterSafeMode asks the user whether to use safe mode and toggles
// the client on yes. The switch cannot be reverted for the session.
func ShouldEnterSafeMode(in io.Reader, out io.Writer, toggler SafeModeToggler) (bool, error) {
	yes, err := ui.AskYesNo(in, out, "Should enter safe mode")
	if err != nil {
		return false, err
	}
	if yes {
		toggler.UpdateToSafe()
	}
	return yes, nil
}

// ApplySafeMode resolves the configured safe mode policy: "always" and
// "never" decide without asking, "ask" prompts on in/out.
func ApplySafeMode(mode string, in io.Reader, out io.Writer, toggler SafeModeToggler) (bool, error) {
	switch mode {
	case config.SafeModeAlways:
		toggler.UpdateToSafe()
		return true, nil
	case config.SafeModeNever:
		return false, nil
	case config.SafeModeAsk, "":
		return ShouldEnterSafeMode(in, out, toggler)
	default:
		return false, fmt.Errorf("unknown safe mode %q", mode)
	}
}
