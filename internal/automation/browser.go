package automation

import (
	"os"
	"path/filepath"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/rotisserie/eris"
)

// ErrNoBrowser means no compatible browser binary could be found. This is
// fatal for the whole run, not for a single record.
var ErrNoBrowser = eris.New("automation: no compatible browser installed")

// lookPath is swapped in tests. The real implementation asks rod's launcher
// for the OS-registered browser.
var lookPath = launcher.LookPath

var fileExists = func(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ResolveBrowserExecutable finds a browser binary for the given platform.
// Search order: vendor default Chrome locations, then the OS-registered
// browser, then common alternates (Edge, Chromium, Firefox).
func ResolveBrowserExecutable(goos string) (string, error) {
	for _, p := range chromePaths(goos) {
		if fileExists(p) {
			return p, nil
		}
	}

	if p, ok := lookPath(); ok {
		return p, nil
	}

	for _, p := range alternatePaths(goos) {
		if fileExists(p) {
			return p, nil
		}
	}

	return "", ErrNoBrowser
}

func chromePaths(goos string) []string {
	switch goos {
	case "windows":
		home, _ := os.UserHomeDir()
		return []string{
			filepath.Join(os.Getenv("PROGRAMFILES"), `Google\Chrome\Application\chrome.exe`),
			filepath.Join(os.Getenv("PROGRAMFILES(X86)"), `Google\Chrome\Application\chrome.exe`),
			filepath.Join(home, `AppData\Local\Google\Chrome\Application\chrome.exe`),
		}
	case "darwin":
		home, _ := os.UserHomeDir()
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			filepath.Join(home, "Applications/Google Chrome.app/Contents/MacOS/Google Chrome"),
		}
	default:
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/opt/google/chrome/chrome",
		}
	}
}

func alternatePaths(goos string) []string {
	switch goos {
	case "windows":
		home, _ := os.UserHomeDir()
		return []string{
			`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,
			`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
			filepath.Join(home, `AppData\Local\Microsoft\Edge\Application\msedge.exe`),
			`C:\Program Files\Mozilla Firefox\firefox.exe`,
		}
	case "darwin":
		return []string{
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Firefox.app/Contents/MacOS/firefox",
		}
	default:
		return []string{
			"/usr/bin/microsoft-edge",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/usr/bin/firefox",
		}
	}
}
