// Package mcptools exposes the scaffolding service over the Model Context
// Protocol, so agent frontends can provision checkouts and excise modules
// through the same service layer the HTTP API uses.
package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jward/lopper"
	"github.com/jward/lopper/internal/journal"
	"github.com/jward/lopper/internal/scaffold"
)

// defaultLogLimit caps operation_log output when the caller gives no limit.
const defaultLogLimit = 20

// Service is the scaffolding surface the tools call into. *scaffold.Service
// satisfies it.
type Service interface {
	Scaffold(ctx context.Context, req scaffold.Request) (*scaffold.Result, string, error)
	Modules(root string) ([]string, error)
	Excise(ctx context.Context, root, module string) (*lopper.ExcisionResult, string, error)
	History(limit int) ([]journal.Entry, error)
}

// RegisterTools adds all scaffolding tools to the MCP server.
func RegisterTools(s *server.MCPServer, svc Service) {
	s.AddTool(provisionRepoTool(), provisionRepoHandler(svc))
	s.AddTool(listModulesTool(), listModulesHandler(svc))
	s.AddTool(exciseModuleTool(), exciseModuleHandler(svc))
	s.AddTool(operationLogTool(), operationLogHandler(svc))
}

// --- provision_repo ---

func provisionRepoTool() mcp.Tool {
	return mcp.NewTool("provision_repo",
		mcp.WithDescription("Clone a repository into the clone directory, optionally rename the checkout and excise one feature module from it."),
		mcp.WithString("repo_url",
			mcp.Description("Git URL or local path of the repository to clone."),
			mcp.Required(),
		),
		mcp.WithString("new_name",
			mcp.Description("Directory name for the working copy. Defaults to the repository name."),
		),
		mcp.WithString("remove_module",
			mcp.Description("Feature module to excise right after cloning (e.g. billing)."),
		),
	)
}

func provisionRepoHandler(svc Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		repoURL := req.GetString("repo_url", "")
		if repoURL == "" {
			return toolError(fmt.Errorf("repo_url is required"))
		}

		res, opID, err := svc.Scaffold(ctx, scaffold.Request{
			RepoURL:      repoURL,
			NewName:      req.GetString("new_name", ""),
			RemoveModule: req.GetString("remove_module", ""),
		})
		if err != nil {
			return toolError(err)
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Cloned %s into %s.\n", res.OriginalName, res.Path)
		if res.RemovedModule != "" {
			fmt.Fprintf(&sb, "Removed module %s, rewrote %d files.\n", res.RemovedModule, len(res.AffectedFiles))
		}
		if res.Warning != "" {
			fmt.Fprintf(&sb, "Warning: %s\n", res.Warning)
		}
		writeModuleList(&sb, "Modules", res.Modules)
		writeOperationID(&sb, opID)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- list_modules ---

func listModulesTool() mcp.Tool {
	return mcp.NewTool("list_modules",
		mcp.WithDescription("List the feature modules declared in a working copy."),
		mcp.WithString("root",
			mcp.Description("Path to the working copy root."),
			mcp.Required(),
		),
	)
}

func listModulesHandler(svc Service) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		root := req.GetString("root", "")
		if root == "" {
			return toolError(fmt.Errorf("root is required"))
		}

		modules, err := svc.Modules(root)
		if err != nil {
			return toolError(err)
		}
		if len(modules) == 0 {
			return mcp.NewToolResultText("No modules declared."), nil
		}

		var sb strings.Builder
		for _, m := range modules {
			sb.WriteString(m)
			sb.WriteByte('\n')
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- excise_module ---

func exciseModuleTool() mcp.Tool {
	return mcp.NewTool("excise_module",
		mcp.WithDescription("Remove a feature module from a working copy: its directory plus every import, declaration entry and route that references it."),
		mcp.WithString("root",
			mcp.Description("Path to the working copy root."),
			mcp.Required(),
		),
		mcp.WithString("module",
			mcp.Description("Name of the module to remove (e.g. billing)."),
			mcp.Required(),
		),
	)
}

func exciseModuleHandler(svc Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		root := req.GetString("root", "")
		if root == "" {
			return toolError(fmt.Errorf("root is required"))
		}
		module := req.GetString("module", "")
		if module == "" {
			return toolError(fmt.Errorf("module is required"))
		}

		res, opID, err := svc.Excise(ctx, root, module)
		if err != nil {
			return toolError(err)
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Removed module %s.\n", res.RemovedModule)
		for _, f := range res.AffectedFiles {
			fmt.Fprintf(&sb, "  rewrote %s\n", f)
		}
		writeModuleList(&sb, "Remaining modules", res.RemainingModules)
		writeOperationID(&sb, opID)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- operation_log ---

func operationLogTool() mcp.Tool {
	return mcp.NewTool("operation_log",
		mcp.WithDescription("Show recent provision and excision operations, newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of operations to show. Defaults to 20."),
		),
	)
}

func operationLogHandler(svc Service) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries, err := svc.History(req.GetInt("limit", defaultLogLimit))
		if err != nil {
			return toolError(err)
		}
		if len(entries) == 0 {
			return mcp.NewToolResultText("No operations recorded."), nil
		}

		var sb strings.Builder
		for _, e := range entries {
			fmt.Fprintf(&sb, "%s  %-9s  %-9s  %s", e.StartedAt.Format(time.RFC3339), e.Kind, e.Status, e.Target)
			if e.Module != "" {
				fmt.Fprintf(&sb, "  module=%s", e.Module)
			}
			if e.Error != "" {
				fmt.Fprintf(&sb, "  error=%s", e.Error)
			}
			sb.WriteByte('\n')
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- helpers ---

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func writeModuleList(sb *strings.Builder, label string, modules []string) {
	if len(modules) == 0 {
		fmt.Fprintf(sb, "%s: none\n", label)
		return
	}
	fmt.Fprintf(sb, "%s: %s\n", label, strings.Join(modules, ", "))
}

func writeOperationID(sb *strings.Builder, opID string) {
	if opID != "" {
		fmt.Fprintf(sb, "Operation: %s\n", opID)
	}
}
