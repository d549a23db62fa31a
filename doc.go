// Package lopper excises feature modules from working copies of front-end
// projects: given a repository checkout and a module name, it deletes the
// module's directory and every reference the rest of the tree holds to it,
// leaving the surviving sources well-formed.
//
// # Pipeline
//
// An excision runs as a fixed sequence of steps:
//
//  1. Validate: check the module name, confirm the working copy root
//     exists, and confirm the module appears in the catalog (the immediate
//     subdirectories of the module root, src/app by default).
//
//  2. Scan: walk the tree outside the module's own directory and locate
//     every reference to the module in the scannable sources, fanning the
//     per-file work out over a worker pool.
//
//  3. Plan: turn the located references into per-file rewrites, deleting
//     spans in descending offset order and tidying each cut locally.
//
//  4. Commit: re-read every affected file to confirm it is unchanged since
//     the scan, then stage and rename each rewrite into place. A failure
//     midway rolls the already-written files back.
//
//  5. Remove: delete the module's directory and re-enumerate the catalog.
//
// # Usage
//
// Create an Engine and excise:
//
//	eng := lopper.New(lopper.WithRequestTimeout(30 * time.Second))
//
//	res, err := eng.Excise(ctx, "/work/shop-frontend", "billing")
//	if err != nil { ... }
//	fmt.Println(res.AffectedFiles, res.RemainingModules)
//
// Requests against the same working copy are serialized; requests against
// different working copies run concurrently.
//
// # Reference kinds
//
// The scanner recognizes four kinds of reference, each located by
// balanced-delimiter scanning of a tokenized view of the file rather than
// by regular expressions over raw text:
//
//   - [RefImport] — an import or re-export statement whose path resolves
//     into the module's directory; the whole statement is removed.
//   - [RefDeclarationEntry] — a declaration-list entry naming the module's
//     conventional class, BillingModule for a module named billing,
//     including any attached call chain and one list separator.
//   - [RefRouteEntry] — a braced route definition whose path equals the
//     module name and whose lazy-load target resolves into the module's
//     directory, including one trailing separator.
//   - [RefStringLiteral] — any other string literal holding a relative
//     path into the module's directory.
//
// Nested matches collapse to the containing span, so removing a route
// entry also removes the lazy-load path inside it.
//
// # Failure semantics
//
// Every failure comes back as an [ExcisionError] naming the pipeline step,
// wrapping one of the taxonomy errors: [ErrRootNotFound],
// [ErrModuleNotFound], [ErrInvalidModuleName], [ErrConcurrentModification],
// [ErrPartialExcision], [ErrDirectoryRemoval]. Nothing is written before
// the commit step; a commit failure reports exactly which files were
// restored and which were not.
package lopper
