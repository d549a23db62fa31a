package lopper

import (
	"path/filepath"
	"sort"
	"strings"
)

// refScanner locates references to one module inside source units. It is
// built once per excision with the module's identity precomputed: the
// absolute module directory for path resolution and the lowercased
// conventional class name for declaration-list matching.
type refScanner struct {
	root      string
	module    string
	moduleDir string
	ident     string
}

func newRefScanner(root, moduleRoot, module string) *refScanner {
	return &refScanner{
		root:      root,
		module:    module,
		moduleDir: filepath.Join(root, moduleRoot, module),
		ident:     moduleIdent(module),
	}
}

// moduleIdent derives the conventional module class name used in
// declaration lists: the module name stripped to alphanumerics with the
// "module" suffix, lowercased. "user-profile" yields "userprofilemodule",
// which matches UserProfileModule however the source cases it.
func moduleIdent(module string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(module) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	b.WriteString("module")
	return b.String()
}

// matchUnit locates every reference to the scanner's module inside one
// unit and returns the merged spans in descending start order.
func (s *refScanner) matchUnit(u *SourceUnit) []ReferenceLocation {
	tokens := u.Tokens()
	var locs []ReferenceLocation
	locs = append(locs, s.matchImports(u, tokens)...)
	locs = append(locs, s.matchDeclarationEntries(u, tokens)...)
	locs = append(locs, s.matchRouteEntries(u, tokens)...)
	locs = append(locs, s.matchStringLiterals(u, tokens)...)
	return mergeLocations(locs)
}

// matchImports locates import and re-export statements whose path resolves
// into the module's directory. The whole statement is the span, from the
// leading keyword through the terminating semicolon, however many lines it
// covers. Dynamic import() expressions are left to the string-literal kind.
func (s *refScanner) matchImports(u *SourceUnit, tokens []token) []ReferenceLocation {
	var locs []ReferenceLocation
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Kind != tokenIdent {
			continue
		}
		var end, path int
		var ok bool
		switch tok.Text {
		case "import":
			end, path, ok = parseImport(tokens, i)
		case "export":
			end, path, ok = parseReexport(tokens, i)
		default:
			continue
		}
		if !ok {
			continue
		}
		if s.pathIntoModule(u.Path, tokens[path].Value) {
			locs = append(locs, ReferenceLocation{
				Kind:  RefImport,
				Start: tok.Start,
				End:   tokens[end].End,
			})
		}
		i = end
	}
	return locs
}

// parseImport walks an import statement starting at the "import" keyword
// and returns the token indexes of its terminating semicolon and its path
// string. Statements that do not fit the import grammar are rejected
// rather than guessed at.
func parseImport(tokens []token, i int) (end, path int, ok bool) {
	j := i + 1
	if j >= len(tokens) || isPunct(tokens[j], "(") {
		return 0, 0, false
	}
	if tokens[j].Kind == tokenString {
		return finishImportPath(tokens, j)
	}
	for j < len(tokens) {
		tok := tokens[j]
		switch {
		case tok.Kind == tokenIdent && tok.Text == "from":
			j++
			if j >= len(tokens) || tokens[j].Kind != tokenString {
				return 0, 0, false
			}
			return finishImportPath(tokens, j)
		case tok.Kind == tokenIdent, isPunct(tok, ","), isPunct(tok, "*"):
			j++
		case isPunct(tok, "{"):
			j = skipBalanced(tokens, j, "{", "}")
			if j < 0 {
				return 0, 0, false
			}
		default:
			return 0, 0, false
		}
	}
	return 0, 0, false
}

// parseReexport matches the re-export forms that carry a source path:
// export {...} from '...'; and export * from '...';, optionally with a
// type keyword or namespace alias. Exports without a from clause are not
// module references.
func parseReexport(tokens []token, i int) (end, path int, ok bool) {
	j := i + 1
	if j < len(tokens) && tokens[j].Kind == tokenIdent && tokens[j].Text == "type" {
		j++
	}
	switch {
	case j < len(tokens) && isPunct(tokens[j], "{"):
		j = skipBalanced(tokens, j, "{", "}")
		if j < 0 {
			return 0, 0, false
		}
	case j < len(tokens) && isPunct(tokens[j], "*"):
		j++
		if j+1 < len(tokens) && tokens[j].Kind == tokenIdent && tokens[j].Text == "as" &&
			tokens[j+1].Kind == tokenIdent {
			j += 2
		}
	default:
		return 0, 0, false
	}
	if j >= len(tokens) || tokens[j].Kind != tokenIdent || tokens[j].Text != "from" {
		return 0, 0, false
	}
	j++
	if j >= len(tokens) || tokens[j].Kind != tokenString {
		return 0, 0, false
	}
	return finishImportPath(tokens, j)
}

// finishImportPath consumes an optional import assertion clause after the
// path string at index p and requires the terminating semicolon.
func finishImportPath(tokens []token, p int) (end, path int, ok bool) {
	j := p + 1
	if j < len(tokens) && tokens[j].Kind == tokenIdent &&
		(tokens[j].Text == "assert" || tokens[j].Text == "with") {
		j++
		if j >= len(tokens) || !isPunct(tokens[j], "{") {
			return 0, 0, false
		}
		j = skipBalanced(tokens, j, "{", "}")
		if j < 0 {
			return 0, 0, false
		}
	}
	if j < len(tokens) && isPunct(tokens[j], ";") {
		return j, p, true
	}
	return 0, 0, false
}

// matchDeclarationEntries locates list entries whose identifier is the
// module's conventional class name directly inside a bracketed list, the
// shape of NgModule imports and declarations arrays. The span covers any
// attached qualifier or call chain, BillingModule.forRoot({...}) included,
// plus one list separator.
func (s *refScanner) matchDeclarationEntries(u *SourceUnit, tokens []token) []ReferenceLocation {
	var locs []ReferenceLocation
	var stack []string
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Kind == tokenPunct {
			switch tok.Text {
			case "[", "{", "(":
				stack = append(stack, tok.Text)
			case "]", "}", ")":
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
			continue
		}
		if tok.Kind != tokenIdent || strings.ToLower(tok.Text) != s.ident {
			continue
		}
		if len(stack) == 0 || stack[len(stack)-1] != "[" {
			continue
		}
		first, last := entrySpan(tokens, i)
		locs = append(locs, spanWithSeparator(u.Text, tokens, first, last, RefDeclarationEntry))
		i = last
	}
	return locs
}

// entrySpan extends a matched identifier over the chain attached to it:
// leading property qualifiers, trailing property accesses, and balanced
// call arguments. Delimiters inside the chain are balanced, so skipping
// the chain leaves the caller's delimiter stack intact.
func entrySpan(tokens []token, ident int) (first, last int) {
	first = ident
	for first >= 2 && isPunct(tokens[first-1], ".") && tokens[first-2].Kind == tokenIdent {
		first -= 2
	}
	last = ident
	for last+1 < len(tokens) {
		next := tokens[last+1]
		if isPunct(next, ".") && last+2 < len(tokens) && tokens[last+2].Kind == tokenIdent {
			last += 2
			continue
		}
		if isPunct(next, "(") {
			after := skipBalanced(tokens, last+1, "(", ")")
			if after < 0 {
				break
			}
			last = after - 1
			continue
		}
		break
	}
	return first, last
}

// matchRouteEntries locates braced route definitions that both name the
// module as their path and lazy-load a file inside the module's directory.
// Only a block's own tokens count, so a parent route whose child routes to
// the module is not itself consumed.
func (s *refScanner) matchRouteEntries(u *SourceUnit, tokens []token) []ReferenceLocation {
	depths := braceDepths(tokens)
	var locs []ReferenceLocation
	var stack []int
	for i, tok := range tokens {
		if isPunct(tok, "{") {
			stack = append(stack, i)
			continue
		}
		if !isPunct(tok, "}") || len(stack) == 0 {
			continue
		}
		open := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.routeBlockMatches(u, tokens, depths, open, i) {
			locs = append(locs, spanWithSeparator(u.Text, tokens, open, i, RefRouteEntry))
		}
	}
	return locs
}

// braceDepths computes the brace nesting depth at each token. A block's
// opening and closing braces share the block's outer depth; the tokens
// between them sit one deeper.
func braceDepths(tokens []token) []int {
	depths := make([]int, len(tokens))
	depth := 0
	for i, tok := range tokens {
		if isPunct(tok, "}") && depth > 0 {
			depth--
		}
		depths[i] = depth
		if isPunct(tok, "{") {
			depth++
		}
	}
	return depths
}

// routeBlockMatches reports whether the block's direct tokens carry both a
// path property equal to the module name and a string resolving into the
// module's directory. Tokens of nested blocks are ignored.
func (s *refScanner) routeBlockMatches(u *SourceUnit, tokens []token, depths []int, open, close int) bool {
	inner := depths[open] + 1
	pathOK := false
	targetOK := false
	for j := open + 1; j < close; j++ {
		if depths[j] != inner {
			continue
		}
		tok := tokens[j]
		if isPathKey(tok) && j+2 < close && isPunct(tokens[j+1], ":") &&
			tokens[j+2].Kind == tokenString && tokens[j+2].Value == s.module {
			pathOK = true
		}
		if tok.Kind == tokenString && s.pathIntoModule(u.Path, tok.Value) {
			targetOK = true
		}
		if pathOK && targetOK {
			return true
		}
	}
	return false
}

func isPathKey(t token) bool {
	return (t.Kind == tokenIdent && t.Text == "path") ||
		(t.Kind == tokenString && t.Value == "path")
}

// matchStringLiterals locates bare string literals whose value is a
// relative path into the module's directory. These catch ad hoc dynamic
// references the structured kinds miss; when one sits inside an import or
// route span the merge keeps only the containing span.
func (s *refScanner) matchStringLiterals(u *SourceUnit, tokens []token) []ReferenceLocation {
	var locs []ReferenceLocation
	for _, tok := range tokens {
		if tok.Kind != tokenString || !s.pathIntoModule(u.Path, tok.Value) {
			continue
		}
		locs = append(locs, ReferenceLocation{
			Kind:  RefStringLiteral,
			Start: tok.Start,
			End:   tok.End,
		})
	}
	return locs
}

// pathIntoModule reports whether a source-text path literal, resolved
// against the unit's directory, lands inside the module's directory. Only
// explicitly relative paths count, and the comparison is segment-aware so
// a module named foo never claims paths in a sibling foobar.
func (s *refScanner) pathIntoModule(unitPath, value string) bool {
	if !strings.HasPrefix(value, "./") && !strings.HasPrefix(value, "../") {
		return false
	}
	resolved := filepath.Clean(filepath.Join(filepath.Dir(unitPath), filepath.FromSlash(value)))
	if resolved == s.moduleDir {
		return true
	}
	return strings.HasPrefix(resolved, s.moduleDir+string(filepath.Separator))
}

// spanWithSeparator widens a token span over one list separator: the
// trailing comma when there is one, and its trailing spaces with it, else
// a leading comma. Removing the widened span leaves the list well-formed.
func spanWithSeparator(text string, tokens []token, first, last int, kind RefKind) ReferenceLocation {
	start := tokens[first].Start
	end := tokens[last].End
	if last+1 < len(tokens) && isPunct(tokens[last+1], ",") {
		end = tokens[last+1].End
		for end < len(text) && (text[end] == ' ' || text[end] == '\t') {
			end++
		}
	} else if first > 0 && isPunct(tokens[first-1], ",") {
		start = tokens[first-1].Start
	}
	return ReferenceLocation{Kind: kind, Start: start, End: end}
}

// skipBalanced advances from an opening delimiter token to just past its
// matching close, or returns -1 if the tokens run out first.
func skipBalanced(tokens []token, open int, openText, closeText string) int {
	depth := 0
	for j := open; j < len(tokens); j++ {
		switch {
		case isPunct(tokens[j], openText):
			depth++
		case isPunct(tokens[j], closeText):
			depth--
			if depth == 0 {
				return j + 1
			}
		}
	}
	return -1
}

func isPunct(t token, text string) bool {
	return t.Kind == tokenPunct && t.Text == text
}

// mergeLocations sorts spans, resolves nesting in favor of the containing
// span, and trims any residual overlap, which arises only when adjacent
// entries claim the same separator. The result is non-overlapping, in
// descending start order, ready for the planner.
func mergeLocations(locs []ReferenceLocation) []ReferenceLocation {
	if len(locs) == 0 {
		return nil
	}
	sort.Slice(locs, func(i, j int) bool {
		if locs[i].Start != locs[j].Start {
			return locs[i].Start < locs[j].Start
		}
		return locs[i].End > locs[j].End
	})
	var kept []ReferenceLocation
	for _, loc := range locs {
		if len(kept) > 0 {
			prev := kept[len(kept)-1]
			if loc.End <= prev.End {
				continue // nested or duplicate: the containing span wins
			}
			if loc.Start < prev.End {
				loc.Start = prev.End // shared separator: trim it away
			}
		}
		kept = append(kept, loc)
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}
