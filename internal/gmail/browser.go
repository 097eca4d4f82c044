package gmail

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

const webBase = "https://mail.google.com/mail/u/0/"

// LabelURL links to a label's message list in the Gmail web client.
func LabelURL(name string) string {
	if name == "" || strings.EqualFold(name, "INBOX") {
		return webBase + "#inbox"
	}
	return webBase + "#label/" + url.PathEscape(name)
}

// OpenBrowser launches the platform's default browser on an http(s) URL.
func OpenBrowser(rawURL string) error {
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return fmt.Errorf("refusing to open non-HTTP URL: %s", rawURL)
	}

	var cmd string
	var args []string
	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{rawURL}
	case "linux":
		cmd = "xdg-open"
		args = []string{rawURL}
	case "windows":
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", rawURL}
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	return exec.Command(cmd, args...).Start()
}
