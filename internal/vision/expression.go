package vision

import (
	"fmt"
	"strings"
	"unicode"
)

// MatchExpression is a boolean combination of matcher lookups. Leaves
// name a matcher by key; internal nodes are not/and/or. Evaluation is
// purely functional against a key->bool predicate and short-circuits.
type MatchExpression interface {
	// Eval evaluates the expression. The lookup is called once per leaf
	// reached; `and` stops at the first false, `or` at the first true.
	Eval(lookup func(key string) bool) bool
	// Keys appends every matcher key referenced by the expression.
	Keys(dst []string) []string
	String() string
}

// MatcherRef is a leaf referencing a named matcher.
type MatcherRef struct{ Key string }

func (e *MatcherRef) Eval(lookup func(string) bool) bool { return lookup(e.Key) }
func (e *MatcherRef) Keys(dst []string) []string         { return append(dst, e.Key) }
func (e *MatcherRef) String() string                     { return fmt.Sprintf("matcher(%s)", e.Key) }

// NotExpr negates its child.
type NotExpr struct{ Child MatchExpression }

func (e *NotExpr) Eval(lookup func(string) bool) bool { return !e.Child.Eval(lookup) }
func (e *NotExpr) Keys(dst []string) []string         { return e.Child.Keys(dst) }
func (e *NotExpr) String() string                     { return "not " + e.Child.String() }

// AndExpr is true when every child is true; evaluation stops at the
// first false child.
type AndExpr struct{ Children []MatchExpression }

func (e *AndExpr) Eval(lookup func(string) bool) bool {
	for _, c := range e.Children {
		if !c.Eval(lookup) {
			return false
		}
	}
	return true
}

func (e *AndExpr) Keys(dst []string) []string {
	for _, c := range e.Children {
		dst = c.Keys(dst)
	}
	return dst
}

func (e *AndExpr) String() string { return joinExpr(e.Children, " and ") }

// OrExpr is true when any child is true; evaluation stops at the first
// true child.
type OrExpr struct{ Children []MatchExpression }

func (e *OrExpr) Eval(lookup func(string) bool) bool {
	for _, c := range e.Children {
		if c.Eval(lookup) {
			return true
		}
	}
	return false
}

func (e *OrExpr) Keys(dst []string) []string {
	for _, c := range e.Children {
		dst = c.Keys(dst)
	}
	return dst
}

func (e *OrExpr) String() string { return joinExpr(e.Children, " or ") }

func joinExpr(children []MatchExpression, sep string) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// exprTokenType identifies lexed tokens.
type exprTokenType int

const (
	tokenIdent exprTokenType = iota
	tokenNot
	tokenAnd
	tokenOr
	tokenLParen
	tokenRParen
	tokenEOF
)

type exprToken struct {
	typ   exprTokenType
	value string
	pos   int
}

// lexExpression tokenizes a match expression. Identifiers may contain
// any non-space rune except parentheses, so group paths like
// "battle_rules/ガチホコ" lex as a single token.
func lexExpression(input string) ([]exprToken, error) {
	var tokens []exprToken
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, exprToken{typ: tokenLParen, pos: i})
			i++
		case r == ')':
			tokens = append(tokens, exprToken{typ: tokenRParen, pos: i})
			i++
		default:
			start := i
			for i < len(runes) && !unicode.IsSpace(runes[i]) && runes[i] != '(' && runes[i] != ')' {
				i++
			}
			word := string(runes[start:i])
			switch strings.ToLower(word) {
			case "not":
				tokens = append(tokens, exprToken{typ: tokenNot, value: word, pos: start})
			case "and":
				tokens = append(tokens, exprToken{typ: tokenAnd, value: word, pos: start})
			case "or":
				tokens = append(tokens, exprToken{typ: tokenOr, value: word, pos: start})
			default:
				tokens = append(tokens, exprToken{typ: tokenIdent, value: word, pos: start})
			}
		}
	}
	tokens = append(tokens, exprToken{typ: tokenEOF, pos: len(runes)})
	return tokens, nil
}

// exprParser parses tokens into a MatchExpression tree.
type exprParser struct {
	tokens []exprToken
	pos    int
}

// ParseExpression parses a textual match expression such as
// "matcher(battle_start) and not matcher(loading)". The matcher(...)
// call form and bare keys are equivalent.
func ParseExpression(input string) (MatchExpression, error) {
	tokens, err := lexExpression(input)
	if err != nil {
		return nil, err
	}
	p := &exprParser{tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.current().typ != tokenEOF {
		return nil, fmt.Errorf("unexpected token %q at %d", p.current().value, p.current().pos)
	}
	return expr, nil
}

func (p *exprParser) current() exprToken { return p.tokens[p.pos] }

func (p *exprParser) advance() { p.pos++ }

func (p *exprParser) parseOr() (MatchExpression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.current().typ == tokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		// Flatten consecutive OR operations
		if or, ok := left.(*OrExpr); ok {
			or.Children = append(or.Children, right)
		} else {
			left = &OrExpr{Children: []MatchExpression{left, right}}
		}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (MatchExpression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.current().typ == tokenAnd {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if and, ok := left.(*AndExpr); ok {
			and.Children = append(and.Children, right)
		} else {
			left = &AndExpr{Children: []MatchExpression{left, right}}
		}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (MatchExpression, error) {
	if p.current().typ == tokenNot {
		p.advance()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Child: child}, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (MatchExpression, error) {
	tok := p.current()
	switch tok.typ {
	case tokenLParen:
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.current().typ != tokenRParen {
			return nil, fmt.Errorf("missing closing parenthesis at %d", p.current().pos)
		}
		p.advance()
		return expr, nil
	case tokenIdent:
		p.advance()
		key := tok.value
		// matcher(name) call form. The lexer splits identifiers at
		// parentheses, so the call always arrives as separate tokens.
		if key == "matcher" && p.current().typ == tokenLParen {
			p.advance()
			inner := p.current()
			if inner.typ != tokenIdent {
				return nil, fmt.Errorf("matcher() requires a key at %d", inner.pos)
			}
			p.advance()
			if p.current().typ != tokenRParen {
				return nil, fmt.Errorf("missing closing parenthesis at %d", p.current().pos)
			}
			p.advance()
			key = inner.value
		}
		if key == "" {
			return nil, fmt.Errorf("empty matcher key at %d", tok.pos)
		}
		return &MatcherRef{Key: key}, nil
	default:
		return nil, fmt.Errorf("unexpected token at %d", tok.pos)
	}
}
