package lopper

import "sort"

// RefKind identifies which syntactic construct a reference location covers.
type RefKind int

const (
	// RefImport is a whole import or re-export statement whose path
	// resolves into the module's directory.
	RefImport RefKind = iota
	// RefDeclarationEntry is one entry of a bracketed declaration list
	// whose identifier is the module's conventional class name, extended
	// over any attached call chain and one list separator.
	RefDeclarationEntry
	// RefRouteEntry is the innermost braced route definition whose path
	// equals the module name and whose lazy-load target resolves into the
	// module's directory, extended over one trailing separator.
	RefRouteEntry
	// RefStringLiteral is a bare quoted literal whose value is a relative
	// path into the module's directory, outside any of the spans above.
	RefStringLiteral
)

func (k RefKind) String() string {
	switch k {
	case RefImport:
		return "import"
	case RefDeclarationEntry:
		return "declaration-entry"
	case RefRouteEntry:
		return "route-entry"
	case RefStringLiteral:
		return "string-literal"
	default:
		return "unknown"
	}
}

// ReferenceLocation pins one module reference inside a source unit as a
// half-open byte span [Start, End) of the unit's text.
type ReferenceLocation struct {
	Kind  RefKind
	Start int
	End   int
}

func (l ReferenceLocation) contains(other ReferenceLocation) bool {
	return l.Start <= other.Start && other.End <= l.End &&
		(l.Start != other.Start || l.End != other.End)
}

// UnitReferences pairs a scanned unit with its reference locations, ordered
// by descending start offset so deletions can be applied without shifting
// the spans still pending.
type UnitReferences struct {
	Unit      *SourceUnit
	Locations []ReferenceLocation
}

// ScanWarning records a file the scan could not read. Warnings are
// non-fatal; the file is simply excluded from the reference set.
type ScanWarning struct {
	Path string
	Err  error
}

// ReferenceSet is the outcome of scanning a working copy for one module:
// every located reference, grouped by the unit that contains it. Units
// holding no references do not appear.
type ReferenceSet struct {
	Module    string
	moduleDir string
	Units     map[string]*UnitReferences
	Warnings  []ScanWarning
}

// Paths returns the unit paths in the set in sorted order.
func (s *ReferenceSet) Paths() []string {
	paths := make([]string, 0, len(s.Units))
	for p := range s.Units {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// FileEdit is one planned rewrite: the unit's path, the exact text the plan
// was computed against, and the full replacement text.
type FileEdit struct {
	Path        string
	Original    string
	Replacement string
}

// ExcisionPlan is an ordered list of per-file rewrites derived from a
// reference set. Applying a plan is pure text substitution; nothing is
// re-scanned at apply time.
type ExcisionPlan struct {
	Module string
	Edits  []FileEdit
}

// ExcisionResult reports a completed excision: the module removed, the
// files whose text was rewritten (working-copy-relative, sorted), and the
// catalog as re-enumerated after the module directory was deleted.
type ExcisionResult struct {
	RemovedModule    string
	AffectedFiles    []string
	RemainingModules []string
}

// Step names one stage of the excision pipeline. It appears in logs and in
// ExcisionError so a failure can be placed without reading a stack trace.
type Step int

const (
	StepValidating Step = iota
	StepScanning
	StepPlanning
	StepCommitting
	StepRemovingDirectory
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepValidating:
		return "validating"
	case StepScanning:
		return "scanning"
	case StepPlanning:
		return "planning"
	case StepCommitting:
		return "committing"
	case StepRemovingDirectory:
		return "removing-directory"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}
