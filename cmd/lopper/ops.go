package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/lopper"
	"github.com/jward/lopper/internal/journal"
	"github.com/jward/lopper/internal/scaffold"
)

// --- modules ---

var modulesCmd = &cobra.Command{
	Use:   "modules <root>",
	Short: "List the feature modules declared in a working copy",
	Args:  cobra.ExactArgs(1),
	RunE:  runModules,
}

func runModules(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	eng := lopper.New(engineOptions(cfg)...)
	modules, err := eng.Modules(args[0])
	if err != nil {
		return outputError("modules", err)
	}

	return outputResult(CLIResult{
		Command: "modules",
		Results: CLIModules{Root: args[0], Modules: modules},
	})
}

// --- excise ---

var exciseCmd = &cobra.Command{
	Use:   "excise <root> <module>",
	Short: "Remove a feature module from a working copy",
	Long:  "Deletes the module directory and rewrites every file that imports, declares or routes to the module. The working copy is left untouched when any step fails.",
	Args:  cobra.ExactArgs(2),
	RunE:  runExcise,
}

func runExcise(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, cleanup, err := newService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	res, opID, err := svc.Excise(cmd.Context(), args[0], args[1])
	if err != nil {
		return outputError("excise", err)
	}

	return outputResult(CLIResult{
		Command: "excise",
		Results: CLIExcision{
			OperationID:      opID,
			RemovedModule:    res.RemovedModule,
			AffectedFiles:    res.AffectedFiles,
			RemainingModules: res.RemainingModules,
		},
	})
}

// --- provision ---

var flagRemoveModule string

var provisionCmd = &cobra.Command{
	Use:   "provision <repo-url> [new-name]",
	Short: "Clone a repository into the clone directory",
	Long:  "Clones the repository, renames the checkout when a new name is given, and with --remove excises one feature module straight away.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runProvision,
}

func init() {
	provisionCmd.Flags().StringVar(&flagRemoveModule, "remove", "", "feature module to excise after cloning")
}

func runProvision(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, cleanup, err := newService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	req := scaffold.Request{RepoURL: args[0], RemoveModule: flagRemoveModule}
	if len(args) > 1 {
		req.NewName = args[1]
	}

	res, opID, err := svc.Scaffold(cmd.Context(), req)
	if err != nil {
		return outputError("provision", err)
	}

	return outputResult(CLIResult{
		Command: "provision",
		Results: provisionToCLI(res, opID),
	})
}

// --- history ---

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent provision and excision operations",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "maximum number of operations to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.JournalPath == "" {
		return outputError("history", errors.New("no journal path configured"))
	}

	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return outputError("history", fmt.Errorf("opening journal: %w", err))
	}
	defer j.Close()

	entries, err := j.List(flagHistoryLimit)
	if err != nil {
		return outputError("history", err)
	}

	ops := make([]CLIOperation, 0, len(entries))
	for _, e := range entries {
		ops = append(ops, operationToCLI(e))
	}
	return outputResult(CLIResult{Command: "history", Results: ops})
}
