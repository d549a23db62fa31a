package httpapi

import "time"

type scaffoldRequest struct {
	RepoURL        string `json:"repo_url"`
	NewName        string `json:"new_name"`
	ModuleToRemove string `json:"module_to_remove"`
}

type scaffoldResponse struct {
	OperationID   string   `json:"operation_id,omitempty"`
	Message       string   `json:"message"`
	OriginalName  string   `json:"original_project_name"`
	NewName       string   `json:"new_project_name"`
	CloneLocation string   `json:"clone_location"`
	RemovedModule string   `json:"removed_module,omitempty"`
	AffectedFiles []string `json:"affected_files,omitempty"`
	Modules       []string `json:"modules"`
	Warning       string   `json:"warning,omitempty"`
}

type modulesResponse struct {
	Root    string   `json:"root"`
	Modules []string `json:"modules"`
}

type exciseResponse struct {
	OperationID      string   `json:"operation_id,omitempty"`
	RemovedModule    string   `json:"removed_module"`
	AffectedFiles    []string `json:"affected_files"`
	RemainingModules []string `json:"remaining_modules"`
}

type operationEntry struct {
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

type operationsResponse struct {
	Operations []operationEntry `json:"operations"`
}

type errorResponse struct {
	OperationID string `json:"operation_id,omitempty"`
	Error       string `json:"error"`
}
