package lopper

// buildPlan turns a reference set into an ordered list of per-file
// rewrites. Each unit's spans are deleted in descending start order, so no
// span shifts before it is applied, and every cut is tidied locally:
// orphaned separators repaired, emptied lines removed, doubled blank lines
// collapsed. Text away from the cut points is never touched.
func buildPlan(refs *ReferenceSet) *ExcisionPlan {
	plan := &ExcisionPlan{Module: refs.Module}
	for _, path := range refs.Paths() {
		ur := refs.Units[path]
		rewritten := rewriteUnit(ur.Unit.Text, ur.Locations)
		if rewritten == ur.Unit.Text {
			continue
		}
		ur.Unit.dirty = true
		plan.Edits = append(plan.Edits, FileEdit{
			Path:        path,
			Original:    ur.Unit.Text,
			Replacement: rewritten,
		})
	}
	return plan
}

// rewriteUnit deletes each location from text. Locations arrive in
// descending start order, so earlier cuts never shift a pending span.
func rewriteUnit(text string, locs []ReferenceLocation) string {
	for _, loc := range locs {
		if loc.Start < 0 || loc.End > len(text) || loc.Start >= loc.End {
			continue
		}
		text = tidyCut(text[:loc.Start]+text[loc.End:], loc.Start)
	}
	return text
}

// tidyCut repairs the junction a deletion leaves at pos: a separator that
// lost its entry, a line emptied to whitespace, a blank line doubled up.
func tidyCut(text string, pos int) string {
	text, pos = repairSeparators(text, pos)
	return collapseEmptyLines(text, pos)
}

// repairSeparators drops a comma orphaned by a cut at pos: a doubled
// comma, a comma directly after an opening delimiter, or a trailing comma
// left before a closing one.
func repairSeparators(text string, pos int) (string, int) {
	p, pi := prevSignificantByte(text, pos)
	n, ni := nextSignificantByte(text, pos)
	switch {
	case n == ',' && (pi < 0 || p == ',' || p == '[' || p == '{' || p == '('):
		text = text[:ni] + text[ni+1:]
	case p == ',' && (n == ']' || n == '}' || n == ')'):
		text = text[:pi] + text[pi+1:]
		pos--
	}
	return text, pos
}

func prevSignificantByte(text string, pos int) (byte, int) {
	for i := pos - 1; i >= 0; i-- {
		switch text[i] {
		case ' ', '\t', '\r', '\n':
		default:
			return text[i], i
		}
	}
	return 0, -1
}

func nextSignificantByte(text string, pos int) (byte, int) {
	for i := pos; i < len(text); i++ {
		switch text[i] {
		case ' ', '\t', '\r', '\n':
		default:
			return text[i], i
		}
	}
	return 0, -1
}

// collapseEmptyLines removes the line at pos when the cut left it holding
// only whitespace, then folds away one of any pair of blank lines meeting
// at the seam.
func collapseEmptyLines(text string, pos int) string {
	if pos > len(text) {
		pos = len(text)
	}
	start, end := lineBounds(text, pos)
	if !blankLine(text[start:end]) {
		return text
	}
	cut := end
	if cut < len(text) {
		cut++ // take the newline with the line
	}
	text = text[:start] + text[cut:]
	if start > 0 && start < len(text) {
		ps, pe := lineBounds(text, start-1)
		cs, ce := lineBounds(text, start)
		if blankLine(text[ps:pe]) && blankLine(text[cs:ce]) {
			cut = ce
			if cut < len(text) {
				cut++
			}
			text = text[:cs] + text[cut:]
		}
	}
	return text
}

// lineBounds returns the [start, end) bounds of the line containing pos,
// end excluding the newline. pos may equal len(text).
func lineBounds(text string, pos int) (int, int) {
	if pos > len(text) {
		pos = len(text)
	}
	start := pos
	for start > 0 && text[start-1] != '\n' {
		start--
	}
	end := pos
	for end < len(text) && text[end] != '\n' {
		end++
	}
	return start, end
}

func blankLine(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' && s[i] != '\t' && s[i] != '\r' {
			return false
		}
	}
	return true
}
