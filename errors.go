package lopper

import (
	"errors"
	"fmt"
)

// Sentinel errors for the excision taxonomy. Typed errors below report the
// detail; these exist so callers can classify with errors.Is without
// caring which concrete type carried the failure.
var (
	ErrRootNotFound           = errors.New("working copy root not found")
	ErrModuleNotFound         = errors.New("module not found")
	ErrInvalidModuleName      = errors.New("invalid module name")
	ErrConcurrentModification = errors.New("file changed since scan")
	ErrPartialExcision        = errors.New("partial excision")
	ErrDirectoryRemoval       = errors.New("module directory removal failed")
)

// RootNotFoundError reports a request against a working copy root that does
// not exist or cannot be read.
type RootNotFoundError struct {
	Root string
	Err  error
}

func (e *RootNotFoundError) Error() string {
	return fmt.Sprintf("working copy root %s not found", e.Root)
}

func (e *RootNotFoundError) Is(target error) bool { return target == ErrRootNotFound }

func (e *RootNotFoundError) Unwrap() error { return e.Err }

// ModuleNotFoundError reports a module name absent from the working copy's
// catalog, including a second excision of a module already removed.
type ModuleNotFoundError struct {
	Module string
	Root   string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module %s not found under %s", e.Module, e.Root)
}

func (e *ModuleNotFoundError) Is(target error) bool { return target == ErrModuleNotFound }

// InvalidModuleNameError reports a module name the engine refuses to
// process, such as one containing a path separator.
type InvalidModuleNameError struct {
	Name   string
	Reason string
}

func (e *InvalidModuleNameError) Error() string {
	return fmt.Sprintf("invalid module name %q: %s", e.Name, e.Reason)
}

func (e *InvalidModuleNameError) Is(target error) bool { return target == ErrInvalidModuleName }

// ConcurrentModificationError reports a file whose bytes on disk no longer
// match the text an excision plan was computed against. The plan is not
// applied; nothing has been written when this is returned.
type ConcurrentModificationError struct {
	Path string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("file %s changed since it was scanned", e.Path)
}

func (e *ConcurrentModificationError) Is(target error) bool {
	return target == ErrConcurrentModification
}

// PartialExcisionError reports a commit that failed midway. Restored lists
// files rolled back to their original text; Unrestored lists files left
// carrying the planned rewrite because rollback also failed, in which case
// the working copy needs manual attention.
type PartialExcisionError struct {
	FailedPath string
	Err        error
	Restored   []string
	Unrestored []string
}

func (e *PartialExcisionError) Error() string {
	if len(e.Unrestored) > 0 {
		return fmt.Sprintf("excision failed writing %s and %d file(s) could not be rolled back: %v",
			e.FailedPath, len(e.Unrestored), e.Err)
	}
	return fmt.Sprintf("excision failed writing %s, all earlier writes rolled back: %v",
		e.FailedPath, e.Err)
}

func (e *PartialExcisionError) Is(target error) bool { return target == ErrPartialExcision }

func (e *PartialExcisionError) Unwrap() error { return e.Err }

// DirectoryRemovalError reports a module directory that could not be
// deleted after its references were already excised. The reference edits
// are not rolled back; the working copy is consistent except for the
// leftover directory.
type DirectoryRemovalError struct {
	Dir string
	Err error
}

func (e *DirectoryRemovalError) Error() string {
	return fmt.Sprintf("removing module directory %s: %v", e.Dir, e.Err)
}

func (e *DirectoryRemovalError) Is(target error) bool { return target == ErrDirectoryRemoval }

func (e *DirectoryRemovalError) Unwrap() error { return e.Err }

// ExcisionError wraps any failure surfaced by Engine.Excise with the
// pipeline step that produced it. Unwrap exposes the underlying taxonomy
// error so errors.Is and errors.As keep working through the wrapper.
type ExcisionError struct {
	Step   Step
	Module string
	Err    error
}

func (e *ExcisionError) Error() string {
	return fmt.Sprintf("excise %s: %s: %v", e.Module, e.Step, e.Err)
}

func (e *ExcisionError) Unwrap() error { return e.Err }
