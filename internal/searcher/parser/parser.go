// Package parser converts infix Boolean queries into postfix token
// sequences with a shunting-yard pass.
//
// Operators are case sensitive: NOT, AND, OR, and AND followed directly by
// NOT, which becomes the single AND NOT operator. Binding strength, tightest
// first, is NOT, AND NOT, AND, OR. Only one parenthesised group is
// understood: the text from the first "(" to the first ")" is parsed on its
// own and its postfix output is emitted in place. Any other parenthesis in
// the query is rejected as malformed: a second group such as "(a) OR (b)"
// is an error, not re-read as bare words with the parentheses kept.
package parser

import (
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/errors"
)

type Kind int

const (
	KindTerm Kind = iota
	KindNot
	KindAndNot
	KindAnd
	KindOr
)

func (k Kind) String() string {
	switch k {
	case KindNot:
		return "NOT"
	case KindAndNot:
		return "AND NOT"
	case KindAnd:
		return "AND"
	case KindOr:
		return "OR"
	default:
		return "TERM"
	}
}

func (k Kind) IsOperator() bool {
	return k != KindTerm
}

func (k Kind) precedence() int {
	switch k {
	case KindNot:
		return 4
	case KindAndNot:
		return 3
	case KindAnd:
		return 2
	case KindOr:
		return 1
	default:
		return 0
	}
}

// Token is one element of a postfix query. Term is set only for KindTerm.
type Token struct {
	Kind Kind
	Term string
}

// Normalizer maps a raw query word to the term the index stores.
type Normalizer interface {
	Term(word string) string
}

type Parser struct {
	norm Normalizer
}

func New(norm Normalizer) *Parser {
	return &Parser{norm: norm}
}

// Parse returns the postfix form of query. A blank query yields no tokens.
func (p *Parser) Parse(query string) ([]Token, error) {
	words, err := split(query)
	if err != nil {
		return nil, err
	}

	var output, stack []Token
	for i := 0; i < len(words); i++ {
		word := words[i]
		if strings.HasPrefix(word, "(") {
			inner, err := p.Parse(word[1 : len(word)-1])
			if err != nil {
				return nil, err
			}
			output = append(output, inner...)
			continue
		}
		kind, ok := operator(word)
		if !ok {
			output = append(output, Token{Kind: KindTerm, Term: p.norm.Term(word)})
			continue
		}
		if kind == KindAnd && i+1 < len(words) && words[i+1] == "NOT" {
			kind = KindAndNot
			i++
		}
		for len(stack) > 0 && stack[len(stack)-1].Kind.precedence() > kind.precedence() {
			output = append(output, stack[len(stack)-1])
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, Token{Kind: kind})
	}
	for len(stack) > 0 {
		output = append(output, stack[len(stack)-1])
		stack = stack[:len(stack)-1]
	}
	return output, nil
}

// split breaks query on whitespace, keeping the first parenthesised group
// as a single word that still carries its parentheses.
func split(query string) ([]string, error) {
	open := strings.IndexByte(query, '(')
	if open < 0 {
		if strings.ContainsRune(query, ')') {
			return nil, apperrors.Newf(apperrors.ErrMalformedQuery, 0, "unmatched ')' in %q", query)
		}
		return strings.Fields(query), nil
	}
	closing := strings.IndexByte(query[open:], ')')
	if closing < 0 {
		return nil, apperrors.Newf(apperrors.ErrMalformedQuery, 0, "unclosed '(' in %q", query)
	}
	closing += open

	front, group, back := query[:open], query[open:closing+1], query[closing+1:]
	if strings.ContainsRune(front, ')') || strings.ContainsAny(back, "()") {
		return nil, apperrors.Newf(apperrors.ErrMalformedQuery, 0,
			"only one parenthesised group is supported in %q", query)
	}
	words := strings.Fields(front)
	words = append(words, group)
	return append(words, strings.Fields(back)...), nil
}

func operator(word string) (Kind, bool) {
	switch word {
	case "NOT":
		return KindNot, true
	case "AND":
		return KindAnd, true
	case "OR":
		return KindOr, true
	default:
		return KindTerm, false
	}
}

// Format renders a postfix sequence as space-separated terms and operators,
// with AND NOT written as "AND_NOT" so the rendering is unambiguous.
func Format(postfix []Token) string {
	var sb strings.Builder
	for i, tok := range postfix {
		if i > 0 {
			sb.WriteByte(' ')
		}
		switch tok.Kind {
		case KindTerm:
			sb.WriteString(tok.Term)
		case KindAndNot:
			sb.WriteString("AND_NOT")
		default:
			sb.WriteString(tok.Kind.String())
		}
	}
	return sb.String()
}
