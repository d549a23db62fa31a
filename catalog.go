package lopper

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// listModules enumerates the feature modules of a working copy: the names
// of the immediate subdirectories of root/moduleRoot, sorted. A missing
// module root is a valid empty catalog, not an error; a missing working
// copy root is.
func listModules(root, moduleRoot string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, &RootNotFoundError{Root: root, Err: err}
	}
	entries, err := os.ReadDir(filepath.Join(root, moduleRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading module root: %w", err)
	}
	var modules []string
	for _, entry := range entries {
		if entry.IsDir() {
			modules = append(modules, entry.Name())
		}
	}
	sort.Strings(modules)
	return modules, nil
}

// validateModuleName rejects names that cannot be a single directory
// component. Names are otherwise opaque: matched case-sensitively against
// catalog entries and never interpreted.
func validateModuleName(name string) error {
	switch {
	case name == "":
		return &InvalidModuleNameError{Name: name, Reason: "empty"}
	case name == "." || name == "..":
		return &InvalidModuleNameError{Name: name, Reason: "not a module directory"}
	case strings.ContainsAny(name, `/\`):
		return &InvalidModuleNameError{Name: name, Reason: "contains a path separator"}
	case strings.ContainsRune(name, 0):
		return &InvalidModuleNameError{Name: name, Reason: "contains a NUL byte"}
	}
	return nil
}

func containsModule(catalog []string, name string) bool {
	for _, m := range catalog {
		if m == name {
			return true
		}
	}
	return false
}
