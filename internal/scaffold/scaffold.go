// Package scaffold is the service layer: provision a working copy,
// optionally excise one feature module from it, and journal what
// happened. Nothing here adds behavior to the engine; it only sequences
// the pieces the way the end-to-end flow needs them.
package scaffold

import (
	"context"
	"errors"
	"fmt"

	"github.com/juju/loggo/v2"

	"github.com/jward/lopper"
	"github.com/jward/lopper/internal/journal"
	"github.com/jward/lopper/internal/provision"
)

var logger = loggo.GetLogger("lopper.scaffold")

// Provisioner checks out a working copy.
type Provisioner interface {
	Provision(ctx context.Context, req provision.Request) (*provision.Provisioned, error)
}

// Engine enumerates and excises feature modules.
type Engine interface {
	Modules(root string) ([]string, error)
	Excise(ctx context.Context, root, module string) (*lopper.ExcisionResult, error)
}

// Request is one end-to-end scaffold job. RemoveModule may be empty, in
// which case the checkout is left whole.
type Request struct {
	RepoURL      string
	NewName      string
	RemoveModule string
}

// Result describes a finished scaffold job. RemovedModule is empty when
// no excision took place; Warning carries the reason when the requested
// module was simply not there.
type Result struct {
	OriginalName  string
	NewName       string
	Path          string
	RemovedModule string
	AffectedFiles []string
	Modules       []string
	Warning       string
}

// Service wires the provisioner, the engine and the journal together.
// The journal may be nil; operations then run unrecorded.
type Service struct {
	provisioner Provisioner
	engine      Engine
	journal     *journal.Journal
}

// New returns a Service over the given collaborators.
func New(p Provisioner, e Engine, j *journal.Journal) *Service {
	return &Service{provisioner: p, engine: e, journal: j}
}

// Scaffold provisions the repository and, when RemoveModule is set,
// excises that module from the fresh checkout. A module that does not
// exist in the checkout is reported in the result, not treated as a
// failure. The returned operation ID identifies the journal row, also
// on failure.
func (s *Service) Scaffold(ctx context.Context, req Request) (*Result, string, error) {
	opID := s.begin(journal.KindProvision, req.RepoURL, req.RemoveModule)

	prov, err := s.provisioner.Provision(ctx, provision.Request{
		RepoURL: req.RepoURL,
		NewName: req.NewName,
	})
	if err != nil {
		s.finish(opID, nil, err)
		return nil, opID, err
	}

	result := &Result{
		OriginalName: prov.OriginalName,
		NewName:      prov.NewName,
		Path:         prov.Path,
	}

	if req.RemoveModule != "" {
		excised, err := s.engine.Excise(ctx, prov.Path, req.RemoveModule)
		switch {
		case errors.Is(err, lopper.ErrModuleNotFound):
			result.Warning = fmt.Sprintf("module %q not found in checkout; nothing removed", req.RemoveModule)
			logger.Warningf("scaffold %s: %s", prov.Path, result.Warning)
		case err != nil:
			s.finish(opID, nil, err)
			return nil, opID, fmt.Errorf("provisioned %s but excision failed: %w", prov.Path, err)
		default:
			result.RemovedModule = excised.RemovedModule
			result.AffectedFiles = excised.AffectedFiles
		}
	}

	modules, err := s.engine.Modules(prov.Path)
	if err != nil {
		s.finish(opID, result.AffectedFiles, err)
		return nil, opID, fmt.Errorf("list modules of %s: %w", prov.Path, err)
	}
	result.Modules = modules

	s.finish(opID, result.AffectedFiles, nil)
	return result, opID, nil
}

// Modules lists the feature modules of an existing working copy.
func (s *Service) Modules(root string) ([]string, error) {
	return s.engine.Modules(root)
}

// Excise removes one module from an existing working copy. The returned
// operation ID identifies the journal row, also on failure.
func (s *Service) Excise(ctx context.Context, root, module string) (*lopper.ExcisionResult, string, error) {
	opID := s.begin(journal.KindExcision, root, module)
	res, err := s.engine.Excise(ctx, root, module)
	if err != nil {
		s.finish(opID, nil, err)
		return nil, opID, err
	}
	s.finish(opID, res.AffectedFiles, nil)
	return res, opID, nil
}

// History returns the most recent journal entries, newest first.
func (s *Service) History(limit int) ([]journal.Entry, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.List(limit)
}

// begin opens a journal row; journaling problems are logged, never
// allowed to fail the operation itself.
func (s *Service) begin(kind journal.Kind, target, module string) string {
	if s.journal == nil {
		return ""
	}
	id, err := s.journal.Begin(kind, target, module)
	if err != nil {
		logger.Warningf("journal begin %s %s: %v", kind, target, err)
		return ""
	}
	return id
}

func (s *Service) finish(opID string, affected []string, opErr error) {
	if s.journal == nil || opID == "" {
		return
	}
	if err := s.journal.Finish(opID, affected, opErr); err != nil {
		logger.Warningf("journal finish %s: %v", opID, err)
	}
}
