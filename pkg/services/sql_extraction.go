package services

import (
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/llm"
)

// sqlResponse is the JSON contract the prompt asks the model to follow.
type sqlResponse struct {
	SQL *string `json:"sql"`
}

// fencePattern matches the first fenced code block, with or without a language tag.
var fencePattern = regexp.MustCompile("(?s)```[ \\t]*[A-Za-z0-9_+-]*[ \\t]*\\r?\\n(.*?)```")

var (
	selectClassPattern = regexp.MustCompile(`(?i)\b(SELECT|WITH)\b`)
	cteOpenPattern     = regexp.MustCompile("(?is)^WITH\\s+(?:RECURSIVE\\s+)?[\\w\"`\\[\\]]+\\s*(?:\\([^)]*\\)\\s*)?AS\\s*(?:NOT\\s+)?(?:MATERIALIZED\\s+)?\\(")
	wordPattern        = regexp.MustCompile(`(?i)^[A-Z_]+`)
	fromWordPattern    = regexp.MustCompile(`(?i)\bFROM\b`)
)

// statementKeywords start a SQL statement. Seeing one right after a ';' means
// the model emitted stacked statements, which must reach the validator intact.
var statementKeywords = map[string]bool{
	"SELECT": true, "WITH": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"DROP": true, "ALTER": true, "CREATE": true, "PRAGMA": true, "ATTACH": true,
	"DETACH": true, "TRUNCATE": true, "MERGE": true, "GRANT": true, "REVOKE": true,
	"EXEC": true, "EXECUTE": true, "CALL": true, "COPY": true, "VACUUM": true,
	"REINDEX": true, "INSTALL": true, "LOAD": true, "SET": true, "REPLACE": true,
	"DECLARE": true, "WAITFOR": true, "BEGIN": true, "COMMIT": true, "ROLLBACK": true,
	"USE": true, "SHUTDOWN": true, "UPSERT": true, "VALUES": true, "TABLE": true,
}

// ExtractSQL pulls one candidate statement out of a model response. It accepts,
// in order of preference: a JSON object with a string "sql" field, the body of
// the first fenced code block, or a statement embedded in prose. A leading
// <think> block is ignored. The result is otherwise unmodified; no safety
// filtering happens here.
func ExtractSQL(response string) (string, error) {
	text := strings.TrimSpace(llm.StripThinking(response))
	if text == "" {
		return "", extractionError("empty model response")
	}

	if strings.Contains(text, "{") {
		if parsed, err := llm.ParseJSONResponse[sqlResponse](text); err == nil && parsed.SQL != nil {
			sql := strings.TrimSpace(*parsed.SQL)
			if sql == "" {
				return "", extractionError("model returned an empty sql field")
			}
			return sql, nil
		}
	}

	if m := fencePattern.FindStringSubmatch(text); m != nil {
		if body := strings.TrimSpace(m[1]); body != "" {
			return body, nil
		}
	}

	if sql, ok := extractFromProse(text); ok {
		return sql, nil
	}

	return "", extractionError("no SQL statement found in model response")
}

func extractionError(msg string) *apperrors.GenerationError {
	return apperrors.NewGenerationError(apperrors.GenerationExtraction, msg, nil)
}

// extractFromProse finds the first SELECT-class statement in free text. A
// keyword counts when it is written in upper case, starts a line, follows a
// colon, or is followed by FROM on the same line, so that ordinary English
// ("select the rows") is not mistaken for SQL. When there is
// no SELECT-class statement, the first line-leading statement keyword is used
// instead so that writes reach the validator and get rejected there.
func extractFromProse(text string) (string, bool) {
	for _, loc := range selectClassPattern.FindAllStringIndex(text, -1) {
		word := text[loc[0]:loc[1]]
		if word != strings.ToUpper(word) && !startsLine(text, loc[0]) &&
			!followsColon(text, loc[0]) && !fromOnLine(text, loc[1]) {
			continue
		}
		if strings.EqualFold(word, "WITH") && !cteOpenPattern.MatchString(text[loc[0]:]) {
			continue
		}
		if sql := scanStatement(text, loc[0]); sql != "" {
			return sql, true
		}
	}

	for start := 0; start < len(text); {
		lineEnd := strings.IndexByte(text[start:], '\n')
		line := text[start:]
		if lineEnd >= 0 {
			line = text[start : start+lineEnd]
		}
		offset := len(line) - len(strings.TrimLeft(line, " \t"))
		if word := wordPattern.FindString(line[offset:]); statementKeywords[strings.ToUpper(word)] {
			if sql := scanStatement(text, start+offset); sql != "" {
				return sql, true
			}
		}
		if lineEnd < 0 {
			break
		}
		start += lineEnd + 1
	}

	return "", false
}

func followsColon(text string, pos int) bool {
	before := strings.TrimRight(text[:pos], " \t\r\n")
	return strings.HasSuffix(before, ":")
}

func fromOnLine(text string, pos int) bool {
	line := text[pos:]
	if end := strings.IndexByte(line, '\n'); end >= 0 {
		line = line[:end]
	}
	return fromWordPattern.MatchString(line)
}

func startsLine(text string, pos int) bool {
	lineStart := strings.LastIndexByte(text[:pos], '\n') + 1
	return strings.TrimSpace(text[lineStart:pos]) == ""
}

// scanStatement returns the text from start to the terminating ';' outside
// quotes and comments, inclusive. If a statement keyword follows the ';' the
// scan continues past it. Without a ';' the statement ends at the first blank
// line or at the end of the text.
func scanStatement(text string, start int) string {
	end := len(text)
	var quote byte
	lineComment, blockComment := false, false

scan:
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case lineComment:
			if c == '\n' {
				lineComment = false
			}
		case blockComment:
			if c == '*' && i+1 < len(text) && text[i+1] == '/' {
				blockComment = false
				i++
			}
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			lineComment = true
			i++
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			blockComment = true
			i++
		case c == ';':
			rest := strings.TrimLeft(text[i+1:], " \t\r\n")
			if statementKeywords[strings.ToUpper(wordPattern.FindString(rest))] {
				continue
			}
			end = i + 1
			break scan
		case c == '\n':
			if blank := strings.TrimLeft(text[i+1:], " \t\r"); strings.HasPrefix(blank, "\n") {
				end = i
				break scan
			}
		}
	}

	return strings.TrimSpace(text[start:end])
}
