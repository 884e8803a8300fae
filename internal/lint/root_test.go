package lint_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ezerfernandes/mermaidcheck/internal/lint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRoot(t *testing.T) {
	t.Parallel()

	repo := t.TempDir()
	nested := filepath.Join(repo, "scripts", "tools")

	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0o700))
	require.NoError(t, os.MkdirAll(nested, 0o700))

	root, err := lint.ResolveRoot(nested)

	require.NoError(t, err)
	assert.Equal(t, repo, root)
}

func TestResolveRootWithoutRepository(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	root, err := lint.ResolveRoot(dir)

	require.NoError(t, err)
	assert.Equal(t, dir, root)
}
