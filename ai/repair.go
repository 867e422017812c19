package ai

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyResponse is returned for blank model output
	ErrEmptyResponse = errors.New("empty response")
	// ErrNoJSON is returned when the output holds no {...} span
	ErrNoJSON = errors.New("no JSON object found in response")
	// ErrUnparseable is returned when every repair failed
	ErrUnparseable = errors.New("JSON parse failed after repairs")
)

var trailingComma = regexp.MustCompile(`,(\s*[}\]])`)

// repair is one rewrite of the candidate JSON text. Repairs are applied
// cumulatively, and a parse is attempted after each.
type repair struct {
	name  string
	apply func(string) string
}

var repairs = []repair{
	{"escape backslashes", escapeBackslashes},
	{"strip trailing commas", stripTrailingCommas},
}

// RepairJSON extracts one JSON object from model output. It strips
// fenced-code lines, cuts the span from the first '{' to the last '}',
// then tries a direct parse, a backslash re-escape and a trailing-comma
// strip, in that order.
func RepairJSON(text string) (map[string]any, error) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil, ErrEmptyResponse
	}

	cleaned = stripFences(cleaned)

	span, ok := braceSpan(cleaned)
	if !ok {
		return nil, ErrNoJSON
	}

	// A raw \frac or \theta is valid JSON (form feed, tab) but not what
	// the model meant, so such spans skip the direct parse.
	if !hasLatexControlEscape(span) {
		if obj, err := decodeObject(span); err == nil {
			return obj, nil
		}
	}

	var lastErr error
	for _, r := range repairs {
		span = r.apply(span)
		obj, err := decodeObject(span)
		if err == nil {
			return obj, nil
		}
		lastErr = err
	}

	return nil, errors.Join(ErrUnparseable, lastErr)
}

func decodeObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// stripFences drops every ``` line when the text opens with a fence
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// braceSpan returns the text from the first '{' to the last '}'
func braceSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// escapeBackslashes doubles every lone backslash. Existing "\\" pairs and
// escaped quotes are kept as they are.
func escapeBackslashes(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/8)
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && (s[i+1] == '\\' || s[i+1] == '"') {
			b.WriteByte('\\')
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteString(`\\`)
	}
	return b.String()
}

func stripTrailingCommas(s string) string {
	return trailingComma.ReplaceAllString(s, "$1")
}

// latexAfterControl lists LaTeX commands that start with a JSON control
// escape letter (t, r, n) and would otherwise decode as tab/CR/newline.
var latexAfterControl = map[string]bool{
	"tau": true, "tan": true, "tanh": true, "text": true, "textbf": true, "textit": true, "textrm": true,
	"tfrac": true, "tbinom": true, "theta": true, "therefore": true, "tilde": true, "times": true,
	"to": true, "top": true, "triangle": true, "triangleq": true,
	"rho": true, "right": true, "rightarrow": true, "rightleftharpoons": true, "rangle": true,
	"rbrace": true, "rbrack": true, "rceil": true, "rfloor": true, "rvert": true, "rVert": true,
	"nabla": true, "natural": true, "ne": true, "nearrow": true, "neg": true, "neq": true, "nexists": true,
	"ngeq": true, "ni": true, "nleq": true, "nmid": true, "not": true, "notin": true, "nparallel": true,
	"nsubseteq": true, "nu": true, "nwarrow": true,
}

// hasLatexControlEscape reports whether s holds a lone backslash that JSON
// would read as a control escape but that is really a LaTeX command:
// any \b or \f, or \t, \r, \n followed by a known command name.
func hasLatexControlEscape(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] != '\\' {
			continue
		}
		next := s[i+1]
		switch next {
		case '\\':
			i++
		case 'b', 'f':
			return true
		case 't', 'r', 'n':
			j := i + 1
			for j < len(s) && isASCIILetter(s[j]) {
				j++
			}
			if latexAfterControl[s[i+1:j]] {
				return true
			}
			i++
		default:
			i++
		}
	}
	return false
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
