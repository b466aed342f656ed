package diff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultSecurityPolicy(t *testing.T) {
	t.Parallel()

	policy := DefaultSecurityPolicy()
	require.Contains(t, policy.SystemPathPrefixes, "/etc/")
	require.Contains(t, policy.SafeExtensions, ".html")
	require.Contains(t, policy.ExecutableExtensions, ".sh")

	patterns, err := policy.contentPatterns()
	require.NoError(t, err)
	require.NotEmpty(t, patterns)
}

func TestLoadPolicyMergesOverDefaults(t *testing.T) {
	t.Parallel()

	path := writePolicy(t, `{"safeExtensions": [".tpl", ".tmpl"]}`)
	policy, err := LoadPolicy(path)
	require.NoError(t, err)

	require.Equal(t, []string{".tpl", ".tmpl"}, policy.SafeExtensions)
	// Untouched sections keep their defaults.
	require.Contains(t, policy.SystemPathPrefixes, "/etc/")
	require.Contains(t, policy.DangerousContentPatterns, "javascript:")
}

func TestLoadPolicyRejectsSchemaViolations(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"wrong type":          `{"safeExtensions": ".html"}`,
		"unknown property":    `{"allowEverything": true}`,
		"empty pattern entry": `{"dangerousContentPatterns": [""]}`,
	}
	for name, body := range cases {
		_, err := LoadPolicy(writePolicy(t, body))
		require.Error(t, err, name)
		var pe *Error
		require.ErrorAs(t, err, &pe, name)
		require.Equal(t, CodePolicy, pe.Code, name)
	}
}

func TestLoadPolicyRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := LoadPolicy(writePolicy(t, `{not json`))
	require.Error(t, err)
}

func TestLoadPolicyRejectsBadRegexp(t *testing.T) {
	t.Parallel()

	_, err := LoadPolicy(writePolicy(t, `{"dangerousContentPatterns": ["["]}`))
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, CodePolicy, pe.Code)
}

func TestLoadPolicyMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, CodeIO, pe.Code)
}
