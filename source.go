package lopper

// SourceUnit is the in-memory representation of one source file: its path,
// the text the scan observed, and a lazily-built token view of the
// import/declaration/route statements the reference matchers consume.
// A unit is owned by the scan that created it and never outlives the
// excision request.
type SourceUnit struct {
	Path string
	Text string

	dirty  bool
	tokens []token
	lexed  bool
}

func newSourceUnit(path, text string) *SourceUnit {
	return &SourceUnit{Path: path, Text: text}
}

// Tokens returns the unit's token view, building it on first use.
func (u *SourceUnit) Tokens() []token {
	if !u.lexed {
		u.tokens = lexSource(u.Text)
		u.lexed = true
	}
	return u.tokens
}

// tokenKind classifies the tokens the matchers care about. Whitespace and
// comments are dropped during lexing; everything that is not an identifier
// or a string literal comes through as single-character punctuation.
type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenString
	tokenPunct
)

// token is one element of a unit's syntactic view. Start and End are byte
// offsets into the unit's text, End exclusive. For string literals Value
// holds the contents without the surrounding quotes, escapes left as-is.
type token struct {
	Kind  tokenKind
	Start int
	End   int
	Text  string
	Value string
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// lexSource tokenizes source text into identifiers, string literals, and
// punctuation. It understands line and block comments, escape sequences,
// and template literals with nested interpolation, which is exactly enough
// structure to locate references without parsing the language. A string
// left unterminated at end of line is closed there so that stray quotes
// (inside regex literals, for instance) cannot swallow the rest of a file.
func lexSource(text string) []token {
	var tokens []token
	i := 0
	n := len(text)
	for i < n {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '/' && i+1 < n && text[i+1] == '/':
			for i < n && text[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && text[i+1] == '*':
			i += 2
			for i+1 < n && !(text[i] == '*' && text[i+1] == '/') {
				i++
			}
			if i+1 < n {
				i += 2
			} else {
				i = n
			}
		case c == '\'' || c == '"':
			start := i
			i++
			for i < n && text[i] != c && text[i] != '\n' {
				if text[i] == '\\' && i+1 < n {
					i++
				}
				i++
			}
			end := i
			if i < n && text[i] == c {
				i++
			}
			tokens = append(tokens, token{
				Kind:  tokenString,
				Start: start,
				End:   i,
				Value: text[start+1 : end],
			})
		case c == '`':
			start := i
			i++
			for i < n && text[i] != '`' {
				if text[i] == '\\' && i+1 < n {
					i += 2
					continue
				}
				if text[i] == '$' && i+1 < n && text[i+1] == '{' {
					i = skipInterpolation(text, i+2)
					continue
				}
				i++
			}
			end := i
			if i < n {
				i++
			}
			tokens = append(tokens, token{
				Kind:  tokenString,
				Start: start,
				End:   i,
				Value: text[start+1 : end],
			})
		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(text[i]) {
				i++
			}
			tokens = append(tokens, token{
				Kind:  tokenIdent,
				Start: start,
				End:   i,
				Text:  text[start:i],
			})
		default:
			tokens = append(tokens, token{
				Kind:  tokenPunct,
				Start: i,
				End:   i + 1,
				Text:  text[i : i+1],
			})
			i++
		}
	}
	return tokens
}

// skipInterpolation advances past a template-literal ${...} interpolation,
// tracking brace depth and skipping over quoted strings so braces inside
// them do not unbalance the count. i points just past the opening brace.
func skipInterpolation(text string, i int) int {
	depth := 1
	n := len(text)
	for i < n && depth > 0 {
		switch text[i] {
		case '{':
			depth++
			i++
		case '}':
			depth--
			i++
		case '\'', '"':
			q := text[i]
			i++
			for i < n && text[i] != q && text[i] != '\n' {
				if text[i] == '\\' && i+1 < n {
					i++
				}
				i++
			}
			if i < n && text[i] == q {
				i++
			}
		case '\\':
			i += 2
		default:
			i++
		}
	}
	return i
}
