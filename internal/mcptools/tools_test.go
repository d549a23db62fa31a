package mcptools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/lopper"
	"github.com/jward/lopper/internal/journal"
	"github.com/jward/lopper/internal/scaffold"
)

type fakeService struct {
	scaffoldRes *scaffold.Result
	scaffoldErr error
	modules     []string
	modulesErr  error
	exciseRes   *lopper.ExcisionResult
	exciseErr   error
	history     []journal.Entry
	historyErr  error

	lastScaffold scaffold.Request
	lastRoot     string
	lastModule   string
	lastLimit    int
}

func (f *fakeService) Scaffold(ctx context.Context, req scaffold.Request) (*scaffold.Result, string, error) {
	f.lastScaffold = req
	if f.scaffoldErr != nil {
		return nil, "op-1", f.scaffoldErr
	}
	return f.scaffoldRes, "op-1", nil
}

func (f *fakeService) Modules(root string) ([]string, error) {
	f.lastRoot = root
	return f.modules, f.modulesErr
}

func (f *fakeService) Excise(ctx context.Context, root, module string) (*lopper.ExcisionResult, string, error) {
	f.lastRoot, f.lastModule = root, module
	if f.exciseErr != nil {
		return nil, "op-2", f.exciseErr
	}
	return f.exciseRes, "op-2", nil
}

func (f *fakeService) History(limit int) ([]journal.Entry, error) {
	f.lastLimit = limit
	return f.history, f.historyErr
}

func callReq(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

// --- provision_repo ---

func TestProvisionRepo_Success(t *testing.T) {
	t.Parallel()
	svc := &fakeService{scaffoldRes: &scaffold.Result{
		OriginalName:  "shop",
		NewName:       "webshop",
		Path:          "/srv/clones/webshop",
		RemovedModule: "billing",
		AffectedFiles: []string{"src/app/app-routing.module.ts", "src/app/app.module.ts"},
		Modules:       []string{"orders"},
	}}

	res, err := provisionRepoHandler(svc)(context.Background(), callReq(map[string]any{
		"repo_url":      "https://github.com/acme/shop.git",
		"new_name":      "webshop",
		"remove_module": "billing",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	text := resultText(t, res)
	assert.Contains(t, text, "Cloned shop into /srv/clones/webshop.")
	assert.Contains(t, text, "Removed module billing, rewrote 2 files.")
	assert.Contains(t, text, "Modules: orders")
	assert.Contains(t, text, "Operation: op-1")

	assert.Equal(t, scaffold.Request{
		RepoURL:      "https://github.com/acme/shop.git",
		NewName:      "webshop",
		RemoveModule: "billing",
	}, svc.lastScaffold)
}

func TestProvisionRepo_OmittedArgsStayEmpty(t *testing.T) {
	t.Parallel()
	svc := &fakeService{scaffoldRes: &scaffold.Result{
		OriginalName: "shop",
		NewName:      "shop",
		Path:         "/srv/clones/shop",
		Modules:      []string{"billing", "orders"},
	}}

	res, err := provisionRepoHandler(svc)(context.Background(), callReq(map[string]any{
		"repo_url": "https://github.com/acme/shop.git",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	assert.Empty(t, svc.lastScaffold.NewName)
	assert.Empty(t, svc.lastScaffold.RemoveModule)
	assert.Contains(t, resultText(t, res), "Modules: billing, orders")
}

func TestProvisionRepo_MissingRepoURL(t *testing.T) {
	t.Parallel()
	svc := &fakeService{}

	res, err := provisionRepoHandler(svc)(context.Background(), callReq(nil))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "repo_url is required")
	assert.Empty(t, svc.lastScaffold.RepoURL)
}

func TestProvisionRepo_ServiceError(t *testing.T) {
	t.Parallel()
	svc := &fakeService{scaffoldErr: errors.New("clone failed: repository not found")}

	res, err := provisionRepoHandler(svc)(context.Background(), callReq(map[string]any{
		"repo_url": "https://github.com/acme/gone.git",
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "repository not found")
}

func TestProvisionRepo_AbsentModuleWarning(t *testing.T) {
	t.Parallel()
	svc := &fakeService{scaffoldRes: &scaffold.Result{
		OriginalName: "shop",
		NewName:      "shop",
		Path:         "/srv/clones/shop",
		Modules:      []string{"billing", "orders"},
		Warning:      `module "payments" not found in checkout; nothing removed`,
	}}

	res, err := provisionRepoHandler(svc)(context.Background(), callReq(map[string]any{
		"repo_url":      "https://github.com/acme/shop.git",
		"remove_module": "payments",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	text := resultText(t, res)
	assert.Contains(t, text, `Warning: module "payments" not found`)
	assert.NotContains(t, text, "Removed module")
}

// --- list_modules ---

func TestListModules_Success(t *testing.T) {
	t.Parallel()
	svc := &fakeService{modules: []string{"billing", "orders"}}

	res, err := listModulesHandler(svc)(context.Background(), callReq(map[string]any{
		"root": "/srv/clones/webshop",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "billing\norders\n", resultText(t, res))
	assert.Equal(t, "/srv/clones/webshop", svc.lastRoot)
}

func TestListModules_Empty(t *testing.T) {
	t.Parallel()
	svc := &fakeService{}

	res, err := listModulesHandler(svc)(context.Background(), callReq(map[string]any{
		"root": "/srv/clones/webshop",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "No modules declared.", resultText(t, res))
}

func TestListModules_MissingRoot(t *testing.T) {
	t.Parallel()
	svc := &fakeService{}

	res, err := listModulesHandler(svc)(context.Background(), callReq(nil))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "root is required")
	assert.Empty(t, svc.lastRoot)
}

func TestListModules_ServiceError(t *testing.T) {
	t.Parallel()
	svc := &fakeService{modulesErr: errors.New("no working copy at /srv/clones/gone")}

	res, err := listModulesHandler(svc)(context.Background(), callReq(map[string]any{
		"root": "/srv/clones/gone",
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "no working copy")
}

// --- excise_module ---

func TestExciseModule_Success(t *testing.T) {
	t.Parallel()
	svc := &fakeService{exciseRes: &lopper.ExcisionResult{
		RemovedModule:    "billing",
		AffectedFiles:    []string{"src/app/app-routing.module.ts", "src/app/app.module.ts"},
		RemainingModules: []string{"orders"},
	}}

	res, err := exciseModuleHandler(svc)(context.Background(), callReq(map[string]any{
		"root":   "/srv/clones/webshop",
		"module": "billing",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	text := resultText(t, res)
	assert.Contains(t, text, "Removed module billing.")
	assert.Contains(t, text, "  rewrote src/app/app-routing.module.ts\n")
	assert.Contains(t, text, "  rewrote src/app/app.module.ts\n")
	assert.Contains(t, text, "Remaining modules: orders")
	assert.Contains(t, text, "Operation: op-2")

	assert.Equal(t, "/srv/clones/webshop", svc.lastRoot)
	assert.Equal(t, "billing", svc.lastModule)
}

func TestExciseModule_NoModulesRemain(t *testing.T) {
	t.Parallel()
	svc := &fakeService{exciseRes: &lopper.ExcisionResult{
		RemovedModule: "billing",
		AffectedFiles: []string{"src/app/app.module.ts"},
	}}

	res, err := exciseModuleHandler(svc)(context.Background(), callReq(map[string]any{
		"root":   "/srv/clones/webshop",
		"module": "billing",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Remaining modules: none")
}

func TestExciseModule_MissingArgs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"no root", map[string]any{"module": "billing"}, "root is required"},
		{"no module", map[string]any{"root": "/srv/clones/webshop"}, "module is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := &fakeService{}

			res, err := exciseModuleHandler(svc)(context.Background(), callReq(tc.args))
			require.NoError(t, err)
			require.True(t, res.IsError)
			assert.Contains(t, resultText(t, res), tc.want)
			assert.Empty(t, svc.lastModule)
		})
	}
}

func TestExciseModule_ServiceError(t *testing.T) {
	t.Parallel()
	svc := &fakeService{exciseErr: errors.New(`scanning references: module "billing" not declared`)}

	res, err := exciseModuleHandler(svc)(context.Background(), callReq(map[string]any{
		"root":   "/srv/clones/webshop",
		"module": "billing",
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not declared")
}

// --- operation_log ---

func TestOperationLog_Formats(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 2, 3, 10, 30, 0, 0, time.UTC)
	svc := &fakeService{history: []journal.Entry{
		{
			ID:        "b",
			Kind:      journal.KindExcision,
			Target:    "/srv/clones/webshop",
			Module:    "billing",
			Status:    journal.StatusSucceeded,
			StartedAt: start.Add(time.Minute),
		},
		{
			ID:        "a",
			Kind:      journal.KindProvision,
			Target:    "https://github.com/acme/shop.git",
			Status:    journal.StatusFailed,
			Error:     "clone failed",
			StartedAt: start,
		},
	}}

	res, err := operationLogHandler(svc)(context.Background(), callReq(nil))
	require.NoError(t, err)
	require.False(t, res.IsError)

	text := resultText(t, res)
	assert.Contains(t, text, "2026-02-03T10:31:00Z")
	assert.Contains(t, text, "excision")
	assert.Contains(t, text, "module=billing")
	assert.Contains(t, text, "https://github.com/acme/shop.git")
	assert.Contains(t, text, "error=clone failed")
	assert.Equal(t, defaultLogLimit, svc.lastLimit)
}

func TestOperationLog_CustomLimit(t *testing.T) {
	t.Parallel()
	svc := &fakeService{}

	res, err := operationLogHandler(svc)(context.Background(), callReq(map[string]any{
		"limit": float64(5),
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, 5, svc.lastLimit)
}

func TestOperationLog_Empty(t *testing.T) {
	t.Parallel()
	svc := &fakeService{}

	res, err := operationLogHandler(svc)(context.Background(), callReq(nil))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "No operations recorded.", resultText(t, res))
}

func TestOperationLog_ServiceError(t *testing.T) {
	t.Parallel()
	svc := &fakeService{historyErr: errors.New("database is locked")}

	res, err := operationLogHandler(svc)(context.Background(), callReq(nil))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "database is locked")
}

// --- registration ---

func TestRegisterTools(t *testing.T) {
	t.Parallel()
	s := server.NewMCPServer("lopper", "0.0.1", server.WithToolCapabilities(true))
	RegisterTools(s, &fakeService{})
}
