package database

import (
	"fmt"
	"strings"
)

// translateNamed rewrites :name placeholders in query to $n positional
// placeholders and returns the argument list in first-occurrence order.
// Repeated names share one index. Colons inside single-quoted literals and
// Postgres ::type casts are left untouched. Text that already uses $n
// placeholders passes through unchanged when params is empty.
//
// A placeholder without a matching params entry, or a params entry never
// referenced by the text, is an error: both are caller bugs worth surfacing
// early.
func translateNamed(query string, params map[string]any) (string, []any, error) {
	if len(params) == 0 && !strings.ContainsRune(query, ':') {
		return query, nil, nil
	}

	var b strings.Builder
	b.Grow(len(query))

	indexByName := make(map[string]int)
	var order []string

	inLiteral := false
	runes := []rune(query)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		if ch == '\'' {
			inLiteral = !inLiteral
			b.WriteRune(ch)
			continue
		}
		if inLiteral || ch != ':' {
			b.WriteRune(ch)
			continue
		}

		// "::" is a Postgres cast, not a placeholder.
		if i+1 < len(runes) && runes[i+1] == ':' {
			b.WriteString("::")
			i++
			continue
		}
		if i == 0 || runes[i-1] != ':' {
			name, width := readIdentifier(runes[i+1:])
			if width > 0 {
				idx, seen := indexByName[name]
				if !seen {
					if _, ok := params[name]; !ok {
						return "", nil, fmt.Errorf("missing value for named parameter :%s", name)
					}
					idx = len(order) + 1
					indexByName[name] = idx
					order = append(order, name)
				}
				fmt.Fprintf(&b, "$%d", idx)
				i += width
				continue
			}
		}
		b.WriteRune(ch)
	}

	for name := range params {
		if _, used := indexByName[name]; !used {
			return "", nil, fmt.Errorf("named parameter %q does not appear in the query", name)
		}
	}

	args := make([]any, len(order))
	for i, name := range order {
		args[i] = params[name]
	}
	return b.String(), args, nil
}

// readIdentifier consumes a leading parameter identifier (letter or
// underscore, then letters, digits, underscores) and returns it with its
// rune width. Width 0 means no identifier starts here.
func readIdentifier(runes []rune) (string, int) {
	if len(runes) == 0 || !isIdentStart(runes[0]) {
		return "", 0
	}
	end := 1
	for end < len(runes) && isIdentPart(runes[end]) {
		end++
	}
	return string(runes[:end]), end
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
