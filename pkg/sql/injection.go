package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a string literal that libinjection flagged.
type InjectionCheckResult struct {
	Fingerprint string // libinjection fingerprint of the detected pattern
	Value       string // the literal content that was checked
}

// CheckLiteralForInjection runs libinjection over the content of one string
// literal. It returns nil when no injection pattern is found.
//
// A model asked for "customers named O'Brien" produces the literal O'Brien,
// which is clean. A literal like ' OR '1'='1 only appears when the question
// itself smuggled SQL into the prompt.
func CheckLiteralForInjection(value string) *InjectionCheckResult {
	if value == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}

	return &InjectionCheckResult{
		Fingerprint: string(fingerprint),
		Value:       value,
	}
}

func findInjectedLiteral(tokens []token) (string, bool) {
	for _, tok := range tokens {
		if tok.kind != tokString {
			continue
		}
		if result := CheckLiteralForInjection(tok.value); result != nil {
			return result.Fingerprint, true
		}
	}
	return "", false
}
