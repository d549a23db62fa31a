// Package httpapi exposes the scaffold service over HTTP:
//
//	POST   /repos                          provision, optionally excising a module
//	GET    /repos/{name}/modules           catalog of an existing working copy
//	DELETE /repos/{name}/modules/{module}  excise only
//	GET    /operations                     journal listing
//
// Engine and provisioning errors map onto status codes through the
// error taxonomy; every mutating response carries the operation's
// journal ID.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/juju/loggo/v2"

	"github.com/jward/lopper"
	"github.com/jward/lopper/internal/journal"
	"github.com/jward/lopper/internal/provision"
	"github.com/jward/lopper/internal/scaffold"
)

var logger = loggo.GetLogger("lopper.httpapi")

const defaultHistoryLimit = 50

// Service is the scaffold surface the handlers drive.
type Service interface {
	Scaffold(ctx context.Context, req scaffold.Request) (*scaffold.Result, string, error)
	Modules(root string) ([]string, error)
	Excise(ctx context.Context, root, module string) (*lopper.ExcisionResult, string, error)
	History(limit int) ([]journal.Entry, error)
}

// Server routes the HTTP API. It resolves {name} path segments against
// the configured clone directory.
type Server struct {
	svc      Service
	cloneDir string
	router   *mux.Router
}

// New builds the router over the given service.
func New(svc Service, cloneDir string) *Server {
	s := &Server{svc: svc, cloneDir: cloneDir}
	r := mux.NewRouter()
	r.HandleFunc("/repos", s.handleScaffold).Methods(http.MethodPost)
	r.HandleFunc("/repos/{name}/modules", s.handleModules).Methods(http.MethodGet)
	r.HandleFunc("/repos/{name}/modules/{module}", s.handleExcise).Methods(http.MethodDelete)
	r.HandleFunc("/operations", s.handleOperations).Methods(http.MethodGet)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleScaffold(w http.ResponseWriter, r *http.Request) {
	var req scaffoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", errors.New("invalid request body"))
		return
	}
	if req.RepoURL == "" {
		writeError(w, http.StatusBadRequest, "", errors.New("repo_url is required"))
		return
	}

	res, opID, err := s.svc.Scaffold(r.Context(), scaffold.Request{
		RepoURL:      req.RepoURL,
		NewName:      req.NewName,
		RemoveModule: req.ModuleToRemove,
	})
	if err != nil {
		writeError(w, statusForError(err), opID, err)
		return
	}
	writeJSON(w, http.StatusOK, scaffoldResponse{
		OperationID:   opID,
		Message:       "repository cloned and renamed successfully",
		OriginalName:  res.OriginalName,
		NewName:       res.NewName,
		CloneLocation: res.Path,
		RemovedModule: res.RemovedModule,
		AffectedFiles: res.AffectedFiles,
		Modules:       res.Modules,
		Warning:       res.Warning,
	})
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	root, ok := s.repoRoot(w, mux.Vars(r)["name"])
	if !ok {
		return
	}
	modules, err := s.svc.Modules(root)
	if err != nil {
		writeError(w, statusForError(err), "", err)
		return
	}
	writeJSON(w, http.StatusOK, modulesResponse{Root: root, Modules: modules})
}

func (s *Server) handleExcise(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	root, ok := s.repoRoot(w, vars["name"])
	if !ok {
		return
	}
	res, opID, err := s.svc.Excise(r.Context(), root, vars["module"])
	if err != nil {
		writeError(w, statusForError(err), opID, err)
		return
	}
	writeJSON(w, http.StatusOK, exciseResponse{
		OperationID:      opID,
		RemovedModule:    res.RemovedModule,
		AffectedFiles:    res.AffectedFiles,
		RemainingModules: res.RemainingModules,
	})
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "", errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	entries, err := s.svc.History(limit)
	if err != nil {
		writeError(w, statusForError(err), "", err)
		return
	}
	resp := operationsResponse{Operations: make([]operationEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Operations = append(resp.Operations, operationEntry{
			ID:            e.ID,
			Kind:          string(e.Kind),
			Target:        e.Target,
			Module:        e.Module,
			Status:        string(e.Status),
			Error:         e.Error,
			AffectedFiles: e.AffectedFiles,
			StartedAt:     e.StartedAt,
			FinishedAt:    e.FinishedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// repoRoot maps a {name} path segment onto a directory below the clone
// directory, rejecting names that would escape it.
func (s *Server) repoRoot(w http.ResponseWriter, name string) (string, bool) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		writeError(w, http.StatusBadRequest, "", errors.New("invalid repository name"))
		return "", false
	}
	return filepath.Join(s.cloneDir, name), true
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, lopper.ErrRootNotFound),
		errors.Is(err, lopper.ErrModuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, lopper.ErrInvalidModuleName),
		errors.Is(err, provision.ErrInvalidRepoURL),
		errors.Is(err, provision.ErrInvalidName),
		errors.Is(err, provision.ErrCloneFailed):
		return http.StatusBadRequest
	case errors.Is(err, provision.ErrDestinationExists),
		errors.Is(err, lopper.ErrConcurrentModification):
		return http.StatusConflict
	case lopper.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, opID string, err error) {
	logger.Debugf("request failed (%d): %v", status, err)
	writeJSON(w, status, errorResponse{OperationID: opID, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warningf("encode response: %v", err)
	}
}
