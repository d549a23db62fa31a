package lopper

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, text := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	}
}

func TestCollectSourceFiles_SkipsNoiseDirectories(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/app/app.module.ts":             "a",
		"src/app/orders/orders.module.ts":   "b",
		"src/app/billing/billing.module.ts": "c",
		"node_modules/lib/index.ts":         "d",
		"dist/app.module.ts":                "e",
		".git/hooks/pre-commit.ts":          "f",
		"src/app/readme.md":                 "g",
	})

	moduleDir := filepath.Join(root, "src", "app", "billing")
	files, warns := collectSourceFiles(root, moduleDir, map[string]bool{".ts": true})
	require.Empty(t, warns)
	assert.Equal(t, []string{
		filepath.Join(root, "src", "app", "app.module.ts"),
		filepath.Join(root, "src", "app", "orders", "orders.module.ts"),
	}, files)
}

func TestCollectSourceFiles_SymlinkCycleTerminates(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/app/app.module.ts": "a",
	})
	// src/app/loop points back at src, a cycle through two levels
	require.NoError(t, os.Symlink(
		filepath.Join(root, "src"),
		filepath.Join(root, "src", "app", "loop")))

	moduleDir := filepath.Join(root, "src", "app", "billing")
	files, _ := collectSourceFiles(root, moduleDir, map[string]bool{".ts": true})
	assert.Equal(t, []string{
		filepath.Join(root, "src", "app", "app.module.ts"),
	}, files)
}

func TestCollectSourceFiles_WarnsOnBrokenSymlink(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/app/app.module.ts": "a",
	})
	require.NoError(t, os.Symlink(
		filepath.Join(root, "gone.ts"),
		filepath.Join(root, "src", "app", "dangling.ts")))

	moduleDir := filepath.Join(root, "src", "app", "billing")
	files, warns := collectSourceFiles(root, moduleDir, map[string]bool{".ts": true})
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Path, "dangling.ts")
	assert.Equal(t, []string{
		filepath.Join(root, "src", "app", "app.module.ts"),
	}, files)
}

func TestScan_FindsReferencesAcrossTree(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/app/app.module.ts":             appModuleTS,
		"src/app/app-routing.module.ts":     appRoutingTS,
		"src/app/billing/billing.module.ts": "export class BillingModule {}\n",
		"src/app/orders/orders.module.ts":   "export class OrdersModule {}\n",
		"src/main.ts":                       "import './app/app.module';\n",
	})

	e := New(WithScanWorkers(2))
	refs, err := e.scan(context.Background(), root, "billing")
	require.NoError(t, err)
	require.NotNil(t, refs)

	assert.Equal(t, "billing", refs.Module)
	assert.Empty(t, refs.Warnings)
	assert.Equal(t, []string{
		filepath.Join(root, "src", "app", "app-routing.module.ts"),
		filepath.Join(root, "src", "app", "app.module.ts"),
	}, refs.Paths())
}

func TestScan_SkipsModuleOwnDirectory(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		// the module references itself; those references die with the
		// directory and must not appear in the set
		"src/app/billing/billing-routing.module.ts": "import { BillingComponent } from './billing.component';\n",
		"src/app/billing/billing.module.ts":         "export class BillingModule {}\n",
	})

	e := New()
	refs, err := e.scan(context.Background(), root, "billing")
	require.NoError(t, err)
	assert.Empty(t, refs.Units)
}

func TestScan_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/app/app.module.ts": appModuleTS,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New()
	_, err := e.scan(ctx, root, "billing")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanFile_UnreadableFileBecomesWarning(t *testing.T) {
	s := newRefScanner("/proj", filepath.Join("src", "app"), "billing")
	res := scanFile(s, filepath.Join(t.TempDir(), "missing.ts"))
	require.NotNil(t, res.warn)
	assert.Nil(t, res.refs)
}
