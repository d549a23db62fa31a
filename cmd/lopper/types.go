package main

import (
	"time"

	"github.com/jward/lopper/internal/journal"
	"github.com/jward/lopper/internal/scaffold"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIModules lists the modules declared in one working copy.
type CLIModules struct {
	Root    string   `json:"root"`
	Modules []string `json:"modules"`
}

// CLIExcision reports a finished excision.
type CLIExcision struct {
	OperationID      string   `json:"operation_id,omitempty"`
	RemovedModule    string   `json:"removed_module"`
	AffectedFiles    []string `json:"affected_files"`
	RemainingModules []string `json:"remaining_modules"`
}

// CLIProvision reports a finished provision run. The field names follow the
// HTTP API response keys.
type CLIProvision struct {
	OperationID   string   `json:"operation_id,omitempty"`
	OriginalName  string   `json:"original_project_name"`
	NewName       string   `json:"new_project_name"`
	Path          string   `json:"clone_location"`
	RemovedModule string   `json:"removed_module,omitempty"`
	AffectedFiles []string `json:"affected_files,omitempty"`
	Modules       []string `json:"modules"`
	Warning       string   `json:"warning,omitempty"`
}

// CLIOperation is one journal entry.
type CLIOperation struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	Target        string     `json:"target"`
	Module        string     `json:"module,omitempty"`
	Status        string     `json:"status"`
	Error         string     `json:"error,omitempty"`
	AffectedFiles []string   `json:"affected_files,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// provisionToCLI converts a scaffold result to its CLI representation.
func provisionToCLI(res *scaffold.Result, opID string) CLIProvision {
	return CLIProvision{
		OperationID:   opID,
		OriginalName:  res.OriginalName,
		NewName:       res.NewName,
		Path:          res.Path,
		RemovedModule: res.RemovedModule,
		AffectedFiles: res.AffectedFiles,
		Modules:       res.Modules,
		Warning:       res.Warning,
	}
}

// operationToCLI converts a journal entry to its CLI representation.
func operationToCLI(e journal.Entry) CLIOperation {
	return CLIOperation{
		ID:            e.ID,
		Kind:          string(e.Kind),
		Target:        e.Target,
		Module:        e.Module,
		Status:        string(e.Status),
		Error:         e.Error,
		AffectedFiles: e.AffectedFiles,
		StartedAt:     e.StartedAt,
		FinishedAt:    e.FinishedAt,
	}
}
