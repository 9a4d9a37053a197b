package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubDiscovery(t *testing.T, existing map[string]bool, registered string) {
	t.Helper()
	origExists, origLook := fileExists, lookPath
	t.Cleanup(func() {
		fileExists = origExists
		lookPath = origLook
	})
	fileExists = func(path string) bool { return existing[path] }
	lookPath = func() (string, bool) { return registered, registered != "" }
}

func TestResolveBrowserExecutable(t *testing.T) {
	t.Run("vendor path wins", func(t *testing.T) {
		stubDiscovery(t, map[string]bool{
			"/usr/bin/google-chrome": true,
			"/usr/bin/chromium":      true,
		}, "/usr/bin/firefox")

		path, err := ResolveBrowserExecutable("linux")
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/google-chrome", path)
	})

	t.Run("falls back to registered browser", func(t *testing.T) {
		stubDiscovery(t, nil, "/usr/bin/some-default")

		path, err := ResolveBrowserExecutable("linux")
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/some-default", path)
	})

	t.Run("falls back to common alternates", func(t *testing.T) {
		stubDiscovery(t, map[string]bool{"/usr/bin/chromium": true}, "")

		path, err := ResolveBrowserExecutable("linux")
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/chromium", path)
	})

	t.Run("nothing installed", func(t *testing.T) {
		stubDiscovery(t, nil, "")

		_, err := ResolveBrowserExecutable("linux")
		require.ErrorIs(t, err, ErrNoBrowser)
	})

	t.Run("darwin vendor path", func(t *testing.T) {
		stubDiscovery(t, map[string]bool{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome": true,
		}, "")

		path, err := ResolveBrowserExecutable("darwin")
		require.NoError(t, err)
		assert.Contains(t, path, "Google Chrome")
	})
}
