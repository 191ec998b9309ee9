package sql

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokWord        tokenKind = iota // unquoted identifier or keyword
	tokQuotedIdent                  // "x", [x] or `x`
	tokString                       // 'x', N'x', X'0f'
	tokNumber
	tokParam // ?, $1, :name, @name
	tokPunct
	tokEOF // returned for out-of-range lookups
)

type token struct {
	kind  tokenKind
	text  string // raw source text
	value string // unquoted content for identifiers and strings
	pos   int    // byte offset in the source
}

func (t token) isWord(w string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, w)
}

func (t token) isPunct(p string) bool {
	return t.kind == tokPunct && t.text == p
}

func (t token) isIdent() bool {
	return t.kind == tokWord || t.kind == tokQuotedIdent
}

// name returns the identifier as the engine sees it, without quotes.
func (t token) name() string {
	if t.kind == tokQuotedIdent {
		return t.value
	}
	return t.text
}

func (t token) upper() string {
	return strings.ToUpper(t.text)
}

// LexError reports input the tokenizer refuses to interpret.
type LexError struct {
	Pos int
	Msg string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s at position %d", e.Msg, e.Pos)
}

func lexErr(pos int, format string, args ...any) *LexError {
	return &LexError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

var multiCharPunct = []string{"->>", "::", "<=", ">=", "<>", "!=", "||", "->", "=>"}

// tokenize splits a statement into tokens, dropping whitespace and comments.
// Strings escape quotes only by doubling them (''); backslashes are literal
// characters in every supported dialect. Anything whose meaning depends on
// server settings (E'' strings, dollar quoting) or that nests (block comments)
// is refused instead of guessed at.
func tokenize(input string, dialect Dialect) ([]token, error) {
	var tokens []token
	n := len(input)
	i := 0

	for i < n {
		c := input[i]

		switch {
		case isSpace(c):
			i++

		case c == '-' && i+1 < n && input[i+1] == '-':
			for i < n && input[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && input[i+1] == '*':
			end, err := skipBlockComment(input, i)
			if err != nil {
				return nil, err
			}
			i = end

		case c == '\'':
			tok, end, err := lexString(input, i, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = end

		case c == '"':
			tok, end, err := lexDelimited(input, i, '"')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = end

		case c == '`' && dialect == DialectSQLite:
			tok, end, err := lexDelimited(input, i, '`')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = end

		case c == '[' && (dialect == DialectSQLite || dialect == DialectSQLServer):
			tok, end, err := lexDelimited(input, i, ']')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = end

		case c == '$':
			tok, end, err := lexDollar(input, i, dialect)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = end

		case c == '?':
			j := i + 1
			for j < n && isDigit(input[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokParam, text: input[i:j], pos: i})
			i = j

		case (c == ':' || c == '@') && i+1 < n && isIdentStart(input, i+1, dialect):
			j := identEnd(input, i+1, dialect)
			tokens = append(tokens, token{kind: tokParam, text: input[i:j], pos: i})
			i = j

		case c == '@' && i+1 < n && input[i+1] == '@':
			// @@VERSION style system variables
			j := identEnd(input, i+2, dialect)
			tokens = append(tokens, token{kind: tokParam, text: input[i:j], pos: i})
			i = j

		case isDigit(c) || (c == '.' && i+1 < n && isDigit(input[i+1])):
			j := numberEnd(input, i)
			tokens = append(tokens, token{kind: tokNumber, text: input[i:j], pos: i})
			i = j

		case isIdentStart(input, i, dialect):
			j := identEnd(input, i, dialect)
			word := input[i:j]
			if j < n && input[j] == '\'' && len(word) == 1 {
				switch word {
				case "E", "e":
					return nil, lexErr(i, "escape string literals are not allowed")
				case "N", "n", "X", "x", "B", "b":
					tok, end, err := lexString(input, i, j)
					if err != nil {
						return nil, err
					}
					tokens = append(tokens, tok)
					i = end
					continue
				}
			}
			tokens = append(tokens, token{kind: tokWord, text: word, pos: i})
			i = j

		default:
			text := string(c)
			for _, p := range multiCharPunct {
				if strings.HasPrefix(input[i:], p) {
					text = p
					break
				}
			}
			if c >= utf8.RuneSelf {
				r, size := utf8.DecodeRuneInString(input[i:])
				if unicode.IsSpace(r) {
					i += size
					continue
				}
				text = input[i : i+size]
			}
			tokens = append(tokens, token{kind: tokPunct, text: text, pos: i})
			i += len(text)
		}
	}

	return tokens, nil
}

func skipBlockComment(input string, start int) (int, error) {
	for j := start + 2; j < len(input)-1; j++ {
		if input[j] == '*' && input[j+1] == '/' {
			return j + 2, nil
		}
		if input[j] == '/' && input[j+1] == '*' {
			return 0, lexErr(j, "nested block comments are not allowed")
		}
	}
	return 0, lexErr(start, "unterminated block comment")
}

// lexString reads a single-quoted literal whose opening quote is at quote.
// start is where the token begins, which differs from quote for prefixed
// literals like N'...'.
func lexString(input string, start, quote int) (token, int, error) {
	var b strings.Builder
	for j := quote + 1; j < len(input); j++ {
		if input[j] != '\'' {
			b.WriteByte(input[j])
			continue
		}
		if j+1 < len(input) && input[j+1] == '\'' {
			b.WriteByte('\'')
			j++
			continue
		}
		return token{kind: tokString, text: input[start : j+1], value: b.String(), pos: start}, j + 1, nil
	}
	return token{}, 0, lexErr(start, "unterminated string literal")
}

// lexDelimited reads a quoted identifier. The closing delimiter is escaped by
// doubling it.
func lexDelimited(input string, start int, closing byte) (token, int, error) {
	var b strings.Builder
	for j := start + 1; j < len(input); j++ {
		if input[j] != closing {
			b.WriteByte(input[j])
			continue
		}
		if j+1 < len(input) && input[j+1] == closing {
			b.WriteByte(closing)
			j++
			continue
		}
		if b.Len() == 0 {
			return token{}, 0, lexErr(start, "empty quoted identifier")
		}
		return token{kind: tokQuotedIdent, text: input[start : j+1], value: b.String(), pos: start}, j + 1, nil
	}
	return token{}, 0, lexErr(start, "unterminated quoted identifier")
}

func lexDollar(input string, start int, dialect Dialect) (token, int, error) {
	n := len(input)
	j := start + 1

	if j < n && isDigit(input[j]) {
		for j < n && isDigit(input[j]) {
			j++
		}
		return token{kind: tokParam, text: input[start:j], pos: start}, j, nil
	}

	if dialect == DialectPostgres || dialect == DialectDuckDB {
		k := j
		for k < n && (isAlnum(input[k]) || input[k] == '_') {
			k++
		}
		if k < n && input[k] == '$' {
			return token{}, 0, lexErr(start, "dollar-quoted strings are not allowed")
		}
	}

	if dialect == DialectSQLite && j < n && isIdentStart(input, j, dialect) {
		end := identEnd(input, j, dialect)
		return token{kind: tokParam, text: input[start:end], pos: start}, end, nil
	}

	return token{kind: tokPunct, text: "$", pos: start}, j, nil
}

func numberEnd(input string, i int) int {
	n := len(input)
	if input[i] == '0' && i+1 < n && (input[i+1] == 'x' || input[i+1] == 'X') {
		j := i + 2
		for j < n && isHex(input[j]) {
			j++
		}
		return j
	}
	j := i
	for j < n && isDigit(input[j]) {
		j++
	}
	if j < n && input[j] == '.' {
		j++
		for j < n && isDigit(input[j]) {
			j++
		}
	}
	if j < n && (input[j] == 'e' || input[j] == 'E') {
		k := j + 1
		if k < n && (input[k] == '+' || input[k] == '-') {
			k++
		}
		if k < n && isDigit(input[k]) {
			for k < n && isDigit(input[k]) {
				k++
			}
			j = k
		}
	}
	return j
}

func isIdentStart(input string, i int, dialect Dialect) bool {
	c := input[i]
	if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return true
	}
	if c == '#' && dialect == DialectSQLServer {
		return true
	}
	if c >= utf8.RuneSelf {
		r, _ := utf8.DecodeRuneInString(input[i:])
		return unicode.IsLetter(r)
	}
	return false
}

func identEnd(input string, i int, dialect Dialect) int {
	n := len(input)
	j := i
	for j < n {
		c := input[j]
		switch {
		case isAlnum(c) || c == '_' || c == '$':
			j++
		case c == '#' && dialect == DialectSQLServer:
			j++
		case c >= utf8.RuneSelf:
			r, size := utf8.DecodeRuneInString(input[j:])
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				return j
			}
			j += size
		default:
			return j
		}
	}
	return j
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// matchParens pairs parentheses. match[i] holds the partner index for "(" and
// ")" tokens, parent[i] the index of the innermost "(" enclosing token i.
// Both are -1 where not applicable.
func matchParens(tokens []token) (match, parent []int, err error) {
	match = make([]int, len(tokens))
	parent = make([]int, len(tokens))
	var stack []int

	for i, tok := range tokens {
		match[i] = -1
		parent[i] = -1
		if len(stack) > 0 {
			parent[i] = stack[len(stack)-1]
		}
		switch {
		case tok.isPunct("("):
			stack = append(stack, i)
		case tok.isPunct(")"):
			if len(stack) == 0 {
				return nil, nil, lexErr(tok.pos, "unbalanced parenthesis")
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			match[i] = open
			match[open] = i
			parent[i] = parent[open]
		}
	}
	if len(stack) > 0 {
		return nil, nil, lexErr(tokens[stack[len(stack)-1]].pos, "unbalanced parenthesis")
	}
	return match, parent, nil
}
