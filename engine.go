package lopper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/im7mortal/kmutex"
	"github.com/juju/clock"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("lopper")

// Engine orchestrates the excision pipeline: catalog validation, reference
// scanning, planning, transactional commit, and module directory removal.
// One Engine serves any number of working copies. Requests against the
// same root are serialized; requests against different roots run
// concurrently.
type Engine struct {
	moduleRoot string
	extensions map[string]bool
	workers    int
	timeout    time.Duration
	clk        clock.Clock
	locks      *kmutex.Kmutex

	// hook, when set, runs before each file write during commit. Tests use
	// it to fail a commit midway.
	hook commitHook
}

// Option configures an Engine.
type Option func(*Engine)

// WithModuleRoot sets the directory, relative to each working copy root,
// whose immediate subdirectories are the feature modules. The default is
// src/app.
func WithModuleRoot(dir string) Option {
	return func(e *Engine) {
		e.moduleRoot = filepath.FromSlash(dir)
	}
}

// WithExtensions sets the file extensions the scanner reads, with or
// without the leading dot. The default is .ts only.
func WithExtensions(exts ...string) Option {
	return func(e *Engine) {
		e.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			e.extensions[ext] = true
		}
	}
}

// WithScanWorkers bounds the scanner's worker pool. The default is the
// number of CPUs.
func WithScanWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithRequestTimeout caps how long one Excise call may run. Zero, the
// default, leaves only the caller's context in charge.
func WithRequestTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithClock substitutes the clock driving the request timeout. Tests pass
// a test clock; the default is the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) {
		e.clk = clk
	}
}

// New creates an Engine. The zero configuration scans .ts files under
// src/app with one worker per CPU and no request timeout.
func New(opts ...Option) *Engine {
	e := &Engine{
		moduleRoot: filepath.Join("src", "app"),
		extensions: map[string]bool{".ts": true},
		workers:    runtime.NumCPU(),
		clk:        clock.WallClock,
		locks:      kmutex.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Modules enumerates the feature modules of the working copy at root: the
// names of the immediate subdirectories of its module root, sorted. A
// working copy with no module root yet has an empty catalog.
func (e *Engine) Modules(root string) ([]string, error) {
	abs, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return nil, &RootNotFoundError{Root: root, Err: err}
	}
	return listModules(abs, e.moduleRoot)
}

// Excise removes the named module from the working copy at root: every
// reference to it is deleted from the surviving sources, then the module's
// directory is removed, then the catalog is re-enumerated. Either all
// reference edits land or, on a mid-commit failure, the files already
// written are rolled back. Requests against the same root are serialized.
//
// Failures come back wrapped in *ExcisionError carrying the pipeline step
// that failed; errors.Is reaches the underlying taxonomy error through it.
func (e *Engine) Excise(ctx context.Context, root, module string) (*ExcisionResult, error) {
	abs, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return nil, &ExcisionError{
			Step:   StepValidating,
			Module: module,
			Err:    &RootNotFoundError{Root: root, Err: err},
		}
	}
	e.locks.Lock(abs)
	defer e.locks.Unlock(abs)

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	return e.excise(ctx, abs, module)
}

// withTimeout derives a context the engine's clock cancels after the
// configured request timeout, so a test clock can drive expiry. Without a
// timeout the context passes through untouched.
func (e *Engine) withTimeout(parent context.Context) (context.Context, func()) {
	if e.timeout <= 0 {
		return parent, func() {}
	}
	ctx, cancel := context.WithCancelCause(parent)
	timer := e.clk.NewTimer(e.timeout)
	go func() {
		defer timer.Stop()
		select {
		case <-timer.Chan():
			cancel(context.DeadlineExceeded)
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

func (e *Engine) excise(ctx context.Context, root, module string) (*ExcisionResult, error) {
	step := StepValidating
	fail := func(err error) (*ExcisionResult, error) {
		logger.Errorf("excise %s from %s failed while %s: %v", module, root, step, err)
		return nil, &ExcisionError{Step: step, Module: module, Err: err}
	}

	logger.Debugf("excise %s from %s: %s", module, root, step)
	if err := validateModuleName(module); err != nil {
		return fail(err)
	}
	catalog, err := listModules(root, e.moduleRoot)
	if err != nil {
		return fail(err)
	}
	if !containsModule(catalog, module) {
		return fail(&ModuleNotFoundError{Module: module, Root: root})
	}
	if ctx.Err() != nil {
		return fail(context.Cause(ctx))
	}

	step = StepScanning
	logger.Debugf("excise %s from %s: %s", module, root, step)
	refs, err := e.scan(ctx, root, module)
	if err != nil {
		return fail(err)
	}

	step = StepPlanning
	logger.Debugf("excise %s from %s: %s (%d unit(s))", module, root, step, len(refs.Units))
	plan := buildPlan(refs)
	if ctx.Err() != nil {
		return fail(context.Cause(ctx))
	}

	// From here on cancellation is ignored: a commit in flight runs to
	// completion or rolls back, never stops half-written.
	step = StepCommitting
	logger.Debugf("excise %s from %s: %s (%d edit(s))", module, root, step, len(plan.Edits))
	affected, err := applyPlan(plan, e.hook)
	if err != nil {
		return fail(err)
	}

	step = StepRemovingDirectory
	moduleDir := filepath.Join(root, e.moduleRoot, module)
	if err := os.RemoveAll(moduleDir); err != nil {
		return fail(&DirectoryRemovalError{Dir: moduleDir, Err: err})
	}

	step = StepDone
	remaining, err := listModules(root, e.moduleRoot)
	if err != nil {
		return fail(err)
	}
	rel := make([]string, 0, len(affected))
	for _, path := range affected {
		r, err := filepath.Rel(root, path)
		if err != nil {
			r = path
		}
		rel = append(rel, r)
	}
	sort.Strings(rel)
	logger.Infof("excised %s from %s: %d file(s) rewritten, %d module(s) remain",
		module, root, len(rel), len(remaining))
	return &ExcisionResult{
		RemovedModule:    module,
		AffectedFiles:    rel,
		RemainingModules: remaining,
	}, nil
}

// IsTimeout reports whether err is the expiry of the request timeout or of
// a caller-supplied deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
