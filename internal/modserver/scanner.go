// Package modserver composes the transform pipeline and the specifier
// resolver: it transforms a file, finds every import in the transformed
// output, resolves the specifiers concurrently, and rewrites them in place.
package modserver

// ImportRef is one occurrence of an import specifier inside source code,
// located by character offsets into the scanned text.
type ImportRef struct {
	// Specifier is the raw specifier string, without quotes.
	Specifier string

	// Start and End are the byte offsets of the specifier text within the
	// scanned code, excluding the surrounding quotes.
	Start int
	End   int

	// Dynamic is true for import("x") call forms.
	Dynamic bool
}

// ScanImports finds every static import, export-from, and dynamic-import
// specifier in JavaScript source.
//
// This is a small-state scanner, not a regex: string literals, template
// literals (including nested ${} expressions), and comments are tracked so
// import-looking text inside them is never matched. It handles the forms
//
//	import "x"
//	import a from "x"
//	import { a, b as c } from "x"
//	import * as ns from "x"
//	import a, { b } from "x"
//	export * from "x"
//	export { a } from "x"
//	import("x")
//
// Specifiers that are not plain string literals (e.g. dynamic import of a
// computed expression) are skipped.
func ScanImports(code string) []ImportRef {
	s := &scanner{src: code}
	return s.scan()
}

type scanner struct {
	src  string
	pos  int
	refs []ImportRef

	// templateDepth tracks how many template-literal ${} expressions we
	// are nested inside, so a closing brace can resume template scanning.
	templateDepth []int
	braceDepth    int
}

func (s *scanner) scan() []ImportRef {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '/' && s.peek(1) == '/':
			s.skipLineComment()
		case c == '/' && s.peek(1) == '*':
			s.skipBlockComment()
		case c == '\'' || c == '"':
			s.skipString(c)
		case c == '`':
			s.skipTemplate()
		case c == '{':
			s.braceDepth++
			s.pos++
		case c == '}':
			s.braceDepth--
			// A closing brace matching a ${ resumes the template literal.
			if n := len(s.templateDepth); n > 0 && s.braceDepth == s.templateDepth[n-1] {
				s.templateDepth = s.templateDepth[:n-1]
				s.pos++
				s.skipTemplate()
				continue
			}
			s.pos++
		case isIdentStart(c):
			word, start := s.readWord()
			switch word {
			case "import":
				s.handleImport(start)
			case "export":
				s.handleExport()
			}
		default:
			s.pos++
		}
	}
	return s.refs
}

// handleImport is called with the scanner positioned just after the
// "import" keyword.
func (s *scanner) handleImport(kwStart int) {
	// Reject member access like obj.import. The keyword must not follow
	// an identifier character or a dot.
	if kwStart > 0 {
		prev := s.src[kwStart-1]
		if isIdentPart(prev) || prev == '.' {
			return
		}
	}

	s.skipTrivia()
	if s.pos >= len(s.src) {
		return
	}

	switch s.src[s.pos] {
	case '.':
		// import.meta is not an import statement.
		return
	case '(':
		// Dynamic import. Only a plain string-literal argument is rewritable.
		s.pos++
		s.skipTrivia()
		if s.pos < len(s.src) && (s.src[s.pos] == '\'' || s.src[s.pos] == '"') {
			s.captureString(true)
		}
		return
	case '\'', '"':
		// Bare form: import "x".
		s.captureString(false)
		return
	}

	// Clause form: scan to the top-level "from", then capture its string.
	if s.seekFrom() {
		s.skipTrivia()
		if s.pos < len(s.src) && (s.src[s.pos] == '\'' || s.src[s.pos] == '"') {
			s.captureString(false)
		}
	}
}

// handleExport is called just after the "export" keyword. Only the
// re-export forms (export * from, export { } from) carry a specifier.
func (s *scanner) handleExport() {
	s.skipTrivia()
	if s.pos >= len(s.src) {
		return
	}
	if c := s.src[s.pos]; c != '*' && c != '{' {
		return
	}
	if s.seekFrom() {
		s.skipTrivia()
		if s.pos < len(s.src) && (s.src[s.pos] == '\'' || s.src[s.pos] == '"') {
			s.captureString(false)
		}
	}
}

// seekFrom advances to just past a top-level "from" keyword within the
// current statement, giving up at a semicolon or end of input. Braces are
// tracked so identifiers inside named-import clauses do not match.
func (s *scanner) seekFrom() bool {
	depth := 0
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '/' && s.peek(1) == '/':
			s.skipLineComment()
		case c == '/' && s.peek(1) == '*':
			s.skipBlockComment()
		case c == '{':
			depth++
			s.pos++
		case c == '}':
			depth--
			s.pos++
		case c == ';':
			return false
		case isIdentStart(c):
			word, _ := s.readWord()
			if word == "from" && depth == 0 {
				return true
			}
		default:
			s.pos++
		}
	}
	return false
}

// captureString reads the string literal at the current position and
// records it as an import reference.
func (s *scanner) captureString(dynamic bool) {
	quote := s.src[s.pos]
	s.pos++
	start := s.pos
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' {
			s.pos += 2
			continue
		}
		if c == quote {
			s.refs = append(s.refs, ImportRef{
				Specifier: s.src[start:s.pos],
				Start:     start,
				End:       s.pos,
				Dynamic:   dynamic,
			})
			s.pos++
			return
		}
		s.pos++
	}
}

func (s *scanner) skipString(quote byte) {
	s.pos++
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' {
			s.pos += 2
			continue
		}
		s.pos++
		if c == quote {
			return
		}
	}
}

// skipTemplate consumes a template literal body. On ${ it records the
// current brace depth and returns to normal scanning so expressions inside
// the interpolation (including imports) are still seen.
func (s *scanner) skipTemplate() {
	if s.pos < len(s.src) && s.src[s.pos] == '`' {
		s.pos++
	}
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' {
			s.pos += 2
			continue
		}
		if c == '`' {
			s.pos++
			return
		}
		if c == '$' && s.peek(1) == '{' {
			s.pos += 2
			s.templateDepth = append(s.templateDepth, s.braceDepth)
			s.braceDepth++
			return
		}
		s.pos++
	}
}

func (s *scanner) skipLineComment() {
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		s.pos++
	}
}

func (s *scanner) skipBlockComment() {
	s.pos += 2
	for s.pos < len(s.src) {
		if s.src[s.pos] == '*' && s.peek(1) == '/' {
			s.pos += 2
			return
		}
		s.pos++
	}
}

// skipTrivia advances past whitespace and comments.
func (s *scanner) skipTrivia() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			s.pos++
		case c == '/' && s.peek(1) == '/':
			s.skipLineComment()
		case c == '/' && s.peek(1) == '*':
			s.skipBlockComment()
		default:
			return
		}
	}
}

// readWord consumes an identifier and returns it with its start offset.
func (s *scanner) readWord() (string, int) {
	start := s.pos
	for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
		s.pos++
	}
	return s.src[start:s.pos], start
}

func (s *scanner) peek(n int) byte {
	if s.pos+n < len(s.src) {
		return s.src[s.pos+n]
	}
	return 0
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
