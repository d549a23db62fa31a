package lopper

import (
	"fmt"
	"os"
	"path/filepath"
)

// commitHook runs before each staged write replaces its target. Tests use
// it to fail the commit midway; production engines leave it nil.
type commitHook func(path string) error

// applyPlan executes a plan in two phases. Validate re-reads every file in
// the plan and confirms its bytes still match the text the plan was
// computed against; any drift aborts before a single write. Commit then
// stages each replacement beside its target and renames it into place, so
// each individual file flips atomically. A failure mid-commit rolls the
// files already written back to their original text, best effort, and the
// returned error reports exactly which paths were and were not restored.
func applyPlan(plan *ExcisionPlan, hook commitHook) ([]string, error) {
	for _, edit := range plan.Edits {
		current, err := os.ReadFile(edit.Path)
		if err != nil {
			return nil, fmt.Errorf("validating %s: %w", edit.Path, err)
		}
		if string(current) != edit.Original {
			return nil, &ConcurrentModificationError{Path: edit.Path}
		}
	}

	var written []string
	for _, edit := range plan.Edits {
		if err := stageAndReplace(edit.Path, edit.Replacement, hook); err != nil {
			restored, unrestored := rollback(plan, written)
			return nil, &PartialExcisionError{
				FailedPath: edit.Path,
				Err:        err,
				Restored:   restored,
				Unrestored: unrestored,
			}
		}
		written = append(written, edit.Path)
		logger.Debugf("rewrote %s", edit.Path)
	}
	return written, nil
}

// stageAndReplace writes text to a temporary file in the target's
// directory and renames it over the target, preserving the target's mode.
func stageAndReplace(path, text string, hook commitHook) error {
	if hook != nil {
		if err := hook(path); err != nil {
			return err
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".lopper-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// rollback restores already-committed files to their original text and
// reports which paths were and were not restored. A path that fails to
// restore is logged and left carrying the planned rewrite.
func rollback(plan *ExcisionPlan, written []string) (restored, unrestored []string) {
	originals := make(map[string]string, len(plan.Edits))
	for _, edit := range plan.Edits {
		originals[edit.Path] = edit.Original
	}
	for _, path := range written {
		if err := stageAndReplace(path, originals[path], nil); err != nil {
			logger.Errorf("rollback of %s failed: %v", path, err)
			unrestored = append(unrestored, path)
			continue
		}
		logger.Infof("rolled back %s", path)
		restored = append(restored, path)
	}
	return restored, unrestored
}
