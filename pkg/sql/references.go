package sql

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

type role int

const (
	roleNone       role = iota
	roleTable           // part of a FROM/JOIN table reference
	roleDefinition      // alias, CTE name, CTE column or window name
	roleType            // type name after :: or CAST(... AS
	roleFunction        // word directly followed by "("
	roleKeyword
	roleHandled // consumed as part of a qualified reference
)

type referenceError struct {
	rule   string
	reason string
}

type columnRef struct {
	idx   int
	parts []string
}

// analysis is the per-statement state for schema membership checks.
type analysis struct {
	tokens  []token
	match   []int
	parent  []int
	schema  *models.SchemaDescription
	dialect Dialect

	roles []role
	// bindings maps lowercased aliases and table names to schema tables.
	// CTEs and derived tables are bound to nil: their columns are not checked.
	bindings map[string]*models.TableInfo
	// names holds select-list aliases, CTE names and columns, window names.
	names  map[string]bool
	ctes   map[string]bool
	tables []*models.TableInfo
}

var eofToken = token{kind: tokEOF}

func (a *analysis) at(i int) token {
	if i < 0 || i >= len(a.tokens) {
		return eofToken
	}
	return a.tokens[i]
}

func (a *analysis) next(i int) token {
	return a.at(i + 1)
}

// opener returns the word directly before the "(" that encloses token i.
func (a *analysis) opener(i int) string {
	p := a.parent[i]
	if p <= 0 || a.tokens[p-1].kind != tokWord {
		return ""
	}
	return a.tokens[p-1].upper()
}

// parseWith walks "WITH [RECURSIVE] name [(cols)] AS [NOT] [MATERIALIZED] (...)
// [, ...]" starting at the WITH token. It returns the index after the CTE list.
// visit, when set, is called for each complete CTE definition.
func (a *analysis) parseWith(i int, visit func(name int, cols []int)) (int, bool) {
	j := i + 1
	if a.at(j).isWord("RECURSIVE") {
		j++
	}
	for {
		if !a.at(j).isIdent() {
			return 0, false
		}
		nameIdx := j
		j++

		var cols []int
		if a.at(j).isPunct("(") {
			closeIdx := a.match[j]
			for k := j + 1; k < closeIdx; k++ {
				if a.tokens[k].isIdent() {
					cols = append(cols, k)
				}
			}
			j = closeIdx + 1
		}

		if !a.at(j).isWord("AS") {
			return 0, false
		}
		j++
		if a.at(j).isWord("NOT") {
			j++
		}
		if a.at(j).isWord("MATERIALIZED") {
			j++
		}
		if !a.at(j).isPunct("(") {
			return 0, false
		}
		if visit != nil {
			visit(nameIdx, cols)
		}
		j = a.match[j] + 1

		if a.at(j).isPunct(",") {
			j++
			continue
		}
		return j, true
	}
}

func (a *analysis) checkReferences() *referenceError {
	a.roles = make([]role, len(a.tokens))
	a.bindings = make(map[string]*models.TableInfo)
	a.names = make(map[string]bool)
	a.ctes = make(map[string]bool)

	a.collectCTEs()
	if err := a.collectTableRefs(); err != nil {
		return err
	}
	refs := a.classify()
	return a.checkColumns(refs)
}

func (a *analysis) collectCTEs() {
	for i, tok := range a.tokens {
		if !tok.isWord("WITH") {
			continue
		}
		a.parseWith(i, func(name int, cols []int) {
			lower := strings.ToLower(a.tokens[name].name())
			a.roles[name] = roleDefinition
			a.ctes[lower] = true
			a.names[lower] = true
			for _, c := range cols {
				a.roles[c] = roleDefinition
				a.names[strings.ToLower(a.tokens[c].name())] = true
			}
		})
	}
}

func (a *analysis) collectTableRefs() *referenceError {
	for i, tok := range a.tokens {
		if !tok.isWord("FROM") && !tok.isWord("JOIN") {
			continue
		}
		if tok.isWord("FROM") && a.isArgumentFrom(i) {
			continue
		}

		j := i + 1
		for {
			for a.at(j).isWord("LATERAL") || a.at(j).isWord("ONLY") {
				j++
			}

			cur := a.at(j)
			switch {
			case cur.isPunct("("):
				j = a.bindAlias(a.match[j]+1, nil)

			case cur.isIdent():
				parts := []string{cur.name()}
				a.roles[j] = roleTable
				for a.at(j+1).isPunct(".") && a.at(j+2).isIdent() {
					a.roles[j+1] = roleTable
					a.roles[j+2] = roleTable
					parts = append(parts, a.tokens[j+2].name())
					j += 2
				}
				j++

				name := strings.Join(parts, ".")
				if a.at(j).isPunct("(") {
					return &referenceError{
						rule:   RuleUnknownTable,
						reason: fmt.Sprintf("table function %s is not allowed; query schema tables only", name),
					}
				}

				table, err := a.resolveTable(name, len(parts))
				if err != nil {
					return err
				}
				if table != nil {
					a.addTable(table)
				}
				a.bindings[strings.ToLower(name)] = table
				a.bindings[strings.ToLower(parts[len(parts)-1])] = table
				j = a.bindAlias(j, table)

			case cur.kind == tokString || cur.kind == tokParam:
				return &referenceError{
					rule:   RuleUnknownTable,
					reason: "table reference must be an identifier",
				}

			default:
				j = -1
			}

			if j < 0 || !a.at(j).isPunct(",") {
				break
			}
			j++
		}
	}
	return nil
}

// isArgumentFrom reports FROM used inside EXTRACT(... FROM x) and friends, or
// as part of IS [NOT] DISTINCT FROM.
func (a *analysis) isArgumentFrom(i int) bool {
	if nonTableFromFunctions[a.opener(i)] {
		return true
	}
	return a.at(i-1).isWord("DISTINCT") && (a.at(i-2).isWord("IS") || a.at(i-2).isWord("NOT"))
}

func (a *analysis) resolveTable(name string, nparts int) (*models.TableInfo, *referenceError) {
	if nparts == 1 && a.ctes[strings.ToLower(name)] {
		return nil, nil
	}

	lookup := name
	if a.dialect == DialectSQLite {
		if schema, bare := splitLast(name); strings.EqualFold(schema, "main") {
			lookup = bare
		}
	}
	if t, ok := a.schema.Table(lookup); ok {
		return t, nil
	}

	reason := fmt.Sprintf("table %s is not in the schema", name)
	if suggestion, ok := suggestTable(a.schema, lookup); ok {
		reason += fmt.Sprintf(" (did you mean %s?)", suggestion)
	}
	return nil, &referenceError{rule: RuleUnknownTable, reason: reason}
}

func (a *analysis) addTable(t *models.TableInfo) {
	for _, existing := range a.tables {
		if existing == t {
			return
		}
	}
	a.tables = append(a.tables, t)
}

// bindAlias consumes an optional "[AS] alias [(col, ...)]" at j and binds the
// alias to table. It returns the index after whatever it consumed.
func (a *analysis) bindAlias(j int, table *models.TableInfo) int {
	if a.at(j).isWord("AS") {
		j++
		if !a.at(j).isIdent() {
			return j
		}
	} else {
		cur := a.at(j)
		if !cur.isIdent() || (cur.kind == tokWord && keywords[cur.upper()]) {
			return j
		}
	}

	a.roles[j] = roleDefinition
	a.bindings[strings.ToLower(a.tokens[j].name())] = table
	j++

	if a.at(j).isPunct("(") {
		closeIdx := a.match[j]
		for k := j + 1; k < closeIdx; k++ {
			if a.tokens[k].isIdent() {
				a.roles[k] = roleDefinition
				a.names[strings.ToLower(a.tokens[k].name())] = true
			}
		}
		j = closeIdx + 1
	}
	return j
}

// classify assigns a role to every identifier not already claimed by a table
// reference or definition, and returns the ones that must name columns.
func (a *analysis) classify() []columnRef {
	var refs []columnRef

	for i := 0; i < len(a.tokens); i++ {
		tok := a.tokens[i]
		if a.roles[i] != roleNone || !tok.isIdent() {
			continue
		}

		if a.next(i).isPunct(".") && isChainPart(a.at(i+2)) {
			parts := []string{tok.name()}
			j := i
			for a.at(j+1).isPunct(".") && isChainPart(a.at(j+2)) {
				parts = append(parts, a.tokens[j+2].name())
				j += 2
			}
			for k := i; k <= j; k++ {
				a.roles[k] = roleHandled
			}
			if !a.next(j).isPunct("(") {
				refs = append(refs, columnRef{idx: i, parts: parts})
			}
			i = j
			continue
		}

		switch {
		case a.next(i).isPunct("("):
			a.roles[i] = roleFunction
		case tok.kind == tokWord && keywords[tok.upper()]:
			a.roles[i] = roleKeyword
		case a.isTypePosition(i):
			a.roles[i] = roleType
		case a.isAliasPosition(i):
			a.roles[i] = roleDefinition
			a.names[strings.ToLower(tok.name())] = true
		default:
			refs = append(refs, columnRef{idx: i, parts: []string{tok.name()}})
		}
	}

	return refs
}

func isChainPart(t token) bool {
	return t.isIdent() || t.isPunct("*")
}

func (a *analysis) isTypePosition(i int) bool {
	prev := a.at(i - 1)
	switch {
	case prev.isPunct("::"), prev.isWord("COLLATE"):
		return true
	case prev.isWord("AS"):
		return castFunctions[a.opener(i)]
	}
	return false
}

// isAliasPosition recognizes "expr AS name", "WINDOW name" and implicit
// aliases that directly follow an expression.
func (a *analysis) isAliasPosition(i int) bool {
	prev := a.at(i - 1)
	switch {
	case prev.isWord("AS"), prev.isWord("WINDOW"), prev.isWord("END"):
		return true
	case prev.isPunct(")"), prev.kind == tokString, prev.kind == tokNumber, prev.kind == tokQuotedIdent:
		return true
	case prev.kind == tokWord:
		return !keywords[prev.upper()] && a.roles[i-1] != roleFunction
	}
	return false
}

func (a *analysis) checkColumns(refs []columnRef) *referenceError {
	for _, ref := range refs {
		if len(ref.parts) == 1 {
			if err := a.checkBareColumn(ref.parts[0]); err != nil {
				return err
			}
			continue
		}

		column := ref.parts[len(ref.parts)-1]
		qualifier := strings.Join(ref.parts[:len(ref.parts)-1], ".")
		table, known := a.lookupQualifier(qualifier)
		if !known {
			return &referenceError{
				rule:   RuleUnknownTable,
				reason: fmt.Sprintf("table or alias %s is not defined in the query", qualifier),
			}
		}
		if table == nil || column == "*" {
			continue
		}
		if _, ok := table.Column(column); !ok {
			return &referenceError{
				rule:   RuleUnknownColumn,
				reason: fmt.Sprintf("column %s does not exist in table %s", column, table.QualifiedName()),
			}
		}
	}
	return nil
}

func (a *analysis) lookupQualifier(q string) (*models.TableInfo, bool) {
	lower := strings.ToLower(q)
	if t, ok := a.bindings[lower]; ok {
		return t, true
	}
	if a.dialect == DialectSQLite {
		if schema, bare := splitLast(lower); schema == "main" {
			if t, ok := a.bindings[bare]; ok {
				return t, true
			}
		}
	}
	if a.names[lower] {
		return nil, true
	}
	return nil, false
}

func (a *analysis) checkBareColumn(name string) *referenceError {
	lower := strings.ToLower(name)
	if a.names[lower] {
		return nil
	}
	if _, ok := a.bindings[lower]; ok {
		return nil
	}
	for _, t := range a.tables {
		if _, ok := t.Column(name); ok {
			return nil
		}
	}

	if len(a.tables) == 0 {
		return &referenceError{
			rule:   RuleUnknownColumn,
			reason: fmt.Sprintf("column %s does not exist in the referenced tables", name),
		}
	}
	return &referenceError{
		rule:   RuleUnknownColumn,
		reason: fmt.Sprintf("column %s does not exist in %s", name, strings.Join(a.tableNames(), ", ")),
	}
}

func (a *analysis) tableNames() []string {
	names := make([]string, len(a.tables))
	for i, t := range a.tables {
		names[i] = t.QualifiedName()
	}
	return names
}
