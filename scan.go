package lopper

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// skipDirNames are directory names never worth scanning: dependency trees
// and build output. Hidden directories are excluded by the leading-dot
// rule, which also covers .git.
var skipDirNames = map[string]bool{
	"node_modules": true,
	"dist":         true,
	"vendor":       true,
	"coverage":     true,
}

// scan walks the working copy and locates every reference to the module,
// fanning per-file scanning out over a bounded worker pool and merging
// results serially. Files that cannot be read are recorded as warnings and
// excluded; cancellation stops workers between files, never mid-file.
func (e *Engine) scan(ctx context.Context, root, module string) (*ReferenceSet, error) {
	s := newRefScanner(root, e.moduleRoot, module)
	files, warns := collectSourceFiles(root, s.moduleDir, e.extensions)

	set := &ReferenceSet{
		Module:    module,
		moduleDir: s.moduleDir,
		Units:     map[string]*UnitReferences{},
		Warnings:  warns,
	}
	if len(files) == 0 {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return set, nil
	}

	workers := e.workers
	if workers > len(files) {
		workers = len(files)
	}
	workCh := make(chan string, len(files))
	resultCh := make(chan scanResult, len(files))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range workCh {
				if ctx.Err() != nil {
					continue // drain; cancellation is reported after the merge
				}
				resultCh <- scanFile(s, path)
			}
		}()
	}
	for _, path := range files {
		workCh <- path
	}
	close(workCh)
	wg.Wait()
	close(resultCh)

	for res := range resultCh {
		if res.warn != nil {
			set.Warnings = append(set.Warnings, *res.warn)
			continue
		}
		if res.refs != nil {
			set.Units[res.path] = res.refs
		}
	}
	if ctx.Err() != nil {
		return nil, context.Cause(ctx)
	}
	return set, nil
}

type scanResult struct {
	path string
	refs *UnitReferences
	warn *ScanWarning
}

func scanFile(s *refScanner, path string) scanResult {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warningf("skipping unreadable file %s: %v", path, err)
		return scanResult{path: path, warn: &ScanWarning{Path: path, Err: err}}
	}
	unit := newSourceUnit(path, string(content))
	locs := s.matchUnit(unit)
	if len(locs) == 0 {
		return scanResult{path: path}
	}
	logger.Debugf("found %d reference(s) in %s", len(locs), path)
	return scanResult{path: path, refs: &UnitReferences{Unit: unit, Locations: locs}}
}

// collectSourceFiles gathers every scannable file under root, following
// directory symlinks while refusing to revisit a resolved path so link
// cycles terminate. The module's own directory is excluded: its contents
// are deleted wholesale, not edited. Unreadable directories are recorded
// as warnings and skipped.
func collectSourceFiles(root, moduleDir string, exts map[string]bool) ([]string, []ScanWarning) {
	var files []string
	var warns []ScanWarning
	visited := map[string]bool{}
	if real, err := filepath.EvalSymlinks(moduleDir); err == nil {
		visited[real] = true
	}

	var walk func(dir string)
	walk = func(dir string) {
		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			warns = append(warns, ScanWarning{Path: dir, Err: err})
			logger.Warningf("skipping unresolvable directory %s: %v", dir, err)
			return
		}
		if visited[real] {
			return
		}
		visited[real] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			warns = append(warns, ScanWarning{Path: dir, Err: err})
			logger.Warningf("skipping unreadable directory %s: %v", dir, err)
			return
		}
		for _, entry := range entries {
			name := entry.Name()
			path := filepath.Join(dir, name)
			isDir := entry.IsDir()
			if entry.Type()&os.ModeSymlink != 0 {
				info, err := os.Stat(path)
				if err != nil {
					warns = append(warns, ScanWarning{Path: path, Err: err})
					continue
				}
				isDir = info.IsDir()
			}
			if isDir {
				if strings.HasPrefix(name, ".") || skipDirNames[name] || path == moduleDir {
					continue
				}
				walk(path)
				continue
			}
			if exts[filepath.Ext(name)] {
				files = append(files, path)
			}
		}
	}
	walk(root)
	sort.Strings(files)
	return files, warns
}
