package domain

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokField  // $Name
	tokNumber // 42, 3.14
	tokString // 'Sales'
	tokOp     // punctuation and operators: , ( ) = <> != <= >= < > + - * / ?
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits a dialect query into tokens. Comments are not tokenized: the
// heuristic pre-filter already rejects comment delimiters, and the dialect
// has no use for them.
func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '$':
			start := i
			i++
			j := i
			for j < len(input) && isIdentChar(input[j]) {
				j++
			}
			if j == i {
				return nil, fmt.Errorf("bare $ sigil at offset %d", start)
			}
			toks = append(toks, token{tokField, input[i:j], start})
			i = j
		case isIdentStart(c):
			j := i
			for j < len(input) && isIdentChar(input[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, input[i:j], i})
			i = j
		case c >= '0' && c <= '9':
			j := i
			for j < len(input) && (input[j] >= '0' && input[j] <= '9' || input[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, input[i:j], i})
			i = j
		case c == '\'':
			j := i + 1
			for j < len(input) && input[j] != '\'' {
				j++
			}
			if j >= len(input) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			toks = append(toks, token{tokString, input[i+1 : j], i})
			i = j + 1
		case strings.ContainsRune("(),=<>!+-*/?", rune(c)):
			// Two-char comparison operators first.
			if i+1 < len(input) {
				two := input[i : i+2]
				if two == "<>" || two == "!=" || two == "<=" || two == ">=" {
					toks = append(toks, token{tokOp, two, i})
					i += 2
					continue
				}
			}
			toks = append(toks, token{tokOp, string(c), i})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", rune(c), i)
		}
	}
	toks = append(toks, token{tokEOF, "", len(input)})
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c))
}

func isIdentChar(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

// isKeyword reports whether tok is the given keyword, case-insensitively.
func (t token) isKeyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}
