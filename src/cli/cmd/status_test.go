package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/setupenv/src/config"
	"github.com/sofmeright/setupenv/src/provision"
)

func runStatusIn(t *testing.T, root string) (string, error) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	prevCfg, prevRoot := cfg, statusRoot
	t.Cleanup(func() { cfg, statusRoot = prevCfg, prevRoot })
	cfg, statusRoot = config.Defaults(), root

	var buf bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&buf)
	err := runStatus(c, nil)
	return buf.String(), err
}

func TestStatusListsDependencies(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "cmake"), 0o755))
	require.NoError(t, provision.MarkComplete(filepath.Join(root, "cmake"), provision.Marker{Name: "cmake", Version: "3.7.2"}))

	out, err := runStatusIn(t, root)
	require.NoError(t, err)

	assert.Contains(t, out, "│ root        "+root)
	assert.Contains(t, out, "3.7.2, built")
	assert.Regexp(t, `gasnet\s+⊘`, out)
	assert.Regexp(t, `cmake\s+✓`, out)
}

func TestStatusReportsIncomplete(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "llvm"), 0o755))

	out, err := runStatusIn(t, root)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, exitIncomplete, exitErr.Code)
	assert.ErrorIs(t, err, provision.ErrIncomplete)
	assert.Regexp(t, `llvm\s+!`, out)
}
