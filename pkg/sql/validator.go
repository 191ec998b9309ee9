// Package sql statically validates model-generated SQL before it may run.
//
// Validation is deny-by-default: a statement is accepted only when it is a
// single read-only SELECT (or a WITH that resolves to one) over tables and
// columns that exist in the introspected schema. Nothing is ever executed here.
package sql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

// Rule codes reported on rejection, in the order they are checked.
const (
	RuleEmpty              = "empty"
	RuleLexical            = "lexical"
	RuleMultipleStatements = "multiple_statements"
	RuleNotSelect          = "not_select"
	RuleForbiddenKeyword   = "forbidden_keyword"
	RuleDangerousFunction  = "dangerous_function"
	RuleUnknownTable       = "unknown_table"
	RuleUnknownColumn      = "unknown_column"
	RuleInjectionPattern   = "injection_pattern"
)

// ValidatedQuery is a statement that passed every rule. Only Validate can
// produce a non-zero value.
type ValidatedQuery struct {
	text   string
	tables []string
}

// Text returns the normalized statement: trimmed, trailing semicolon removed.
func (q ValidatedQuery) Text() string {
	return q.text
}

// Tables returns the schema tables the statement reads, sorted.
func (q ValidatedQuery) Tables() []string {
	return append([]string(nil), q.tables...)
}

// IsZero reports whether q was constructed without validation.
func (q ValidatedQuery) IsZero() bool {
	return q.text == ""
}

// Validator checks candidate statements against one schema and dialect.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	schema  *models.SchemaDescription
	dialect Dialect
}

// NewValidator creates a Validator for the given schema.
func NewValidator(schema *models.SchemaDescription, dialect Dialect) *Validator {
	if schema == nil {
		schema = &models.SchemaDescription{}
	}
	return &Validator{schema: schema, dialect: dialect}
}

// Dialect returns the dialect the validator was built for.
func (v *Validator) Dialect() Dialect {
	return v.dialect
}

// Validate applies the safety policy to candidate. On failure the error is a
// *apperrors.RejectedQueryError carrying the rule, a reason and the original
// text unchanged.
func (v *Validator) Validate(candidate string) (ValidatedQuery, error) {
	reject := func(rule, format string, args ...any) (ValidatedQuery, error) {
		return ValidatedQuery{}, &apperrors.RejectedQueryError{
			Rule:         rule,
			Reason:       fmt.Sprintf(format, args...),
			OriginalText: candidate,
		}
	}

	tokens, err := tokenize(candidate, v.dialect)
	if err != nil {
		return reject(RuleLexical, "%s", err.Error())
	}
	if len(tokens) == 0 {
		return reject(RuleEmpty, "query is empty")
	}

	normalized := strings.TrimSpace(candidate)
	if last := tokens[len(tokens)-1]; last.isPunct(";") {
		normalized = strings.TrimSpace(candidate[:last.pos])
		tokens = tokens[:len(tokens)-1]
		if len(tokens) == 0 {
			return reject(RuleEmpty, "query is empty")
		}
	}
	for _, tok := range tokens {
		if tok.isPunct(";") {
			return reject(RuleMultipleStatements, "multiple SQL statements are not allowed")
		}
	}

	match, parent, err := matchParens(tokens)
	if err != nil {
		return reject(RuleLexical, "%s", err.Error())
	}

	a := &analysis{
		tokens:  tokens,
		match:   match,
		parent:  parent,
		schema:  v.schema,
		dialect: v.dialect,
	}

	if !a.isSelectAt(0) {
		return reject(RuleNotSelect, "only SELECT queries are allowed (statement starts with %s)", firstWord(tokens))
	}

	if kw, ok := a.findForbiddenKeyword(); ok {
		return reject(RuleForbiddenKeyword, "%s is not allowed in a read-only query", kw)
	}

	if fn, ok := a.findDangerousFunction(); ok {
		return reject(RuleDangerousFunction, "function %s is not allowed", fn)
	}

	if r := a.checkReferences(); r != nil {
		return reject(r.rule, "%s", r.reason)
	}

	if fp, ok := findInjectedLiteral(tokens); ok {
		return reject(RuleInjectionPattern, "string literal matches a SQL injection pattern (fingerprint %s)", fp)
	}

	return ValidatedQuery{text: normalized, tables: a.referencedTableNames()}, nil
}

func firstWord(tokens []token) string {
	for _, tok := range tokens {
		if tok.kind == tokWord {
			return tok.upper()
		}
	}
	return fmt.Sprintf("%q", tokens[0].text)
}

// isSelectAt reports whether the statement beginning at index i is a SELECT,
// optionally introduced by a WITH clause. The statement itself must not open
// with a parenthesis; only the body following WITH may be parenthesized.
func (a *analysis) isSelectAt(i int) bool {
	if i >= len(a.tokens) {
		return false
	}
	switch {
	case a.tokens[i].isWord("SELECT"):
		return true
	case a.tokens[i].isWord("WITH"):
		end, ok := a.parseWith(i, nil)
		if !ok {
			return false
		}
		for end < len(a.tokens) && a.tokens[end].isPunct("(") {
			end++
		}
		return end < len(a.tokens) && a.tokens[end].isWord("SELECT")
	default:
		return false
	}
}

func (a *analysis) findForbiddenKeyword() (string, bool) {
	for i, tok := range a.tokens {
		if tok.kind != tokWord {
			continue
		}
		upper := tok.upper()
		if forbiddenKeywords[upper] {
			return upper, true
		}
		if upper == "REPLACE" && !a.next(i).isPunct("(") {
			return upper, true
		}
		if upper == "FOR" {
			if nxt := a.next(i); nxt.kind == tokWord && lockingClauseWords[nxt.upper()] {
				return "FOR " + nxt.upper(), true
			}
		}
	}
	return "", false
}

func (a *analysis) findDangerousFunction() (string, bool) {
	for i, tok := range a.tokens {
		if !tok.isIdent() || !a.next(i).isPunct("(") {
			continue
		}
		if isDangerousFunction(a.dialect, tok.name()) {
			return tok.name(), true
		}
	}
	return "", false
}

// suggestTable returns a schema table whose name is the singular or plural
// form of name, if any.
func suggestTable(schema *models.SchemaDescription, name string) (string, bool) {
	_, bare := splitLast(name)
	for _, candidate := range []string{inflection.Plural(bare), inflection.Singular(bare)} {
		if strings.EqualFold(candidate, bare) {
			continue
		}
		if t, ok := schema.Table(candidate); ok {
			return t.QualifiedName(), true
		}
	}
	return "", false
}

func splitLast(name string) (string, string) {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return "", name
}

func (a *analysis) referencedTableNames() []string {
	names := make([]string, 0, len(a.tables))
	for _, t := range a.tables {
		names = append(names, t.QualifiedName())
	}
	sort.Strings(names)
	return names
}
