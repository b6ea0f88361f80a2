package login

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Browser is the production Navigator: it opens the system browser, falling
// back to printing the URL when no browser can be launched (headless or
// non-interactive sessions).
type Browser struct {
	// Interactive gates whether a launch is attempted at all.
	Interactive bool
}

func (b *Browser) Navigate(url string) error {
	if b.Interactive {
		if err := openBrowser(url); err == nil {
			fmt.Fprintf(os.Stderr, "Opened your browser for sign-in. If nothing happened, visit:\n  %s\n", url)
			return nil
		}
	}
	fmt.Fprintf(os.Stderr, "Visit this URL to sign in:\n  %s\n", url)
	return nil
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
