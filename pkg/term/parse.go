// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package term

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/jllopis/kairos-bdi/pkg/errors"
)

// Parse decodes `functor(arg1, arg2, ...)` into its functor and arguments.
// It never fails: malformed input yields the text before the first "(" as
// functor and no arguments.
func Parse(text string) (string, []Value) {
	functor, args, _ := ParseStrict(text)
	return functor, args
}

// ParseStrict is Parse that also reports why a payload was malformed. The
// returned functor and args are the same best-effort values Parse returns.
func ParseStrict(text string) (string, []Value, error) {
	t, err := ParseTerm(text)
	if err != nil {
		return bestEffortFunctor(text), nil, err
	}
	return t.Functor, t.Args, nil
}

// ParseTerm decodes a complete term, annotations included.
func ParseTerm(text string) (*Term, error) {
	p := &parser{src: text}
	p.skipSpace()
	if p.eof() {
		return nil, parseError(text, p.pos, "empty term")
	}
	t, err := p.parseCompound(true)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, parseError(text, p.pos, fmt.Sprintf("unexpected %q", p.peek()))
	}
	return t, nil
}

// ParseValue decodes a single argument value.
func ParseValue(text string) (Value, error) {
	p := &parser{src: text}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, parseError(text, p.pos, fmt.Sprintf("unexpected %q", p.peek()))
	}
	return v, nil
}

func bestEffortFunctor(text string) string {
	if idx := strings.Index(text, "("); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func parseError(src string, pos int, reason string) error {
	return errors.New(errors.CodeParse, "malformed term", fmt.Errorf("%s at offset %d", reason, pos)).
		WithContext("payload", src)
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) fail(reason string) error {
	return parseError(p.src, p.pos, reason)
}

// parseCompound reads `name [ (args) ] [ [annotations] ]`. At the top level
// any identifier is accepted as functor, including capitalised ones.
func (p *parser) parseCompound(top bool) (*Term, error) {
	p.skipSpace()
	var functor string
	switch c := p.peek(); {
	case c == '\'':
		s, err := p.parseQuoted('\'')
		if err != nil {
			return nil, err
		}
		functor = s
	case isIdentStart(c) || c == '.':
		functor = p.parseIdent()
		if functor == "." {
			return nil, p.fail("missing functor after '.'")
		}
		if !top && isVarName(functor) {
			return nil, p.fail("variable used as functor")
		}
	default:
		return nil, p.fail("expected functor")
	}

	t := &Term{Functor: functor}
	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		args, err := p.parseList(')')
		if err != nil {
			return nil, err
		}
		t.Args = args
		p.skipSpace()
	}
	if p.peek() == '[' {
		p.pos++
		items, err := p.parseList(']')
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			ann, ok := item.(*Term)
			if !ok {
				return nil, p.fail("annotation must be a term")
			}
			t.Annotations = append(t.Annotations, ann)
		}
	}
	return t, nil
}

// parseList reads comma separated values up to the closing delimiter.
func (p *parser) parseList(closing byte) ([]Value, error) {
	var out []Value
	p.skipSpace()
	if p.peek() == closing {
		p.pos++
		return out, nil
	}
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case closing:
			p.pos++
			return out, nil
		case 0:
			return nil, p.fail(fmt.Sprintf("missing %q", closing))
		default:
			return nil, p.fail(fmt.Sprintf("unexpected %q", p.peek()))
		}
	}
}

func (p *parser) parseValue() (Value, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == 0:
		return nil, p.fail("unexpected end of input")
	case c == '"':
		s, err := p.parseQuoted('"')
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case c == '[':
		p.pos++
		items, err := p.parseList(']')
		if err != nil {
			return nil, err
		}
		return Tuple(items), nil
	case c == '-' || c == '+' || isDigit(c):
		return p.parseNumber()
	case c == '\'':
		return p.parseCompound(false)
	case isIdentStart(c):
		start := p.pos
		name := p.parseIdent()
		if isVarName(name) {
			p.skipSpace()
			if p.peek() == '(' {
				return nil, p.fail("variable used as functor")
			}
			return Var(name), nil
		}
		p.pos = start
		return p.parseCompound(false)
	default:
		return nil, p.fail(fmt.Sprintf("unexpected %q", c))
	}
}

func (p *parser) parseIdent() string {
	start := p.pos
	if p.peek() == '.' {
		p.pos++
	}
	for !p.eof() && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// parseQuoted reads a quoted literal. Escapes follow Go syntax for double
// quotes; single-quoted atoms only escape the quote and backslash.
func (p *parser) parseQuoted(quote byte) (string, error) {
	start := p.pos
	p.pos++
	for !p.eof() {
		switch p.src[p.pos] {
		case '\\':
			p.pos += 2
		case quote:
			p.pos++
			raw := p.src[start:p.pos]
			if quote == '"' {
				s, err := strconv.Unquote(raw)
				if err != nil {
					return "", parseError(p.src, start, "invalid string literal")
				}
				return s, nil
			}
			inner := raw[1 : len(raw)-1]
			inner = strings.ReplaceAll(inner, `\'`, `'`)
			return strings.ReplaceAll(inner, `\\`, `\`), nil
		default:
			p.pos++
		}
	}
	return "", parseError(p.src, start, "unterminated quoted literal")
}

func (p *parser) parseNumber() (Value, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	isFloat := false
scan:
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case isDigit(c):
		case c == '.' || c == 'e' || c == 'E':
			isFloat = true
		case (c == '-' || c == '+') && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E'):
		default:
			break scan
		}
		p.pos++
	}
	raw := p.src[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, parseError(p.src, start, "invalid number "+strconv.Quote(raw))
		}
		return Float(f), nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, parseError(p.src, start, "invalid number "+strconv.Quote(raw))
	}
	return Int(n), nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isVarName(name string) bool {
	if name == "" {
		return false
	}
	c := name[0]
	return c == '_' || (c >= 'A' && c <= 'Z')
}
