package relicconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "verify.conf")
	require.NoError(t, os.WriteFile(path, []byte(`
trustStores:
  corp:
    bundle: /etc/authenticode-verify/corp-roots.pem
maxNestedSignatureDepth: 4
`), 0o644))

	cfg, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxNestedSignatureDepth)

	ts, err := cfg.GetTrustStore("corp")
	require.NoError(t, err)
	assert.Equal(t, "/etc/authenticode-verify/corp-roots.pem", ts.Bundle)

	_, err = cfg.GetTrustStore("missing")
	assert.Error(t, err)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.conf"))
	assert.Error(t, err)
}
