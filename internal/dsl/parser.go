package dsl

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ParseError reports a malformed condition string with the offending
// fragment and its byte position.
type ParseError struct {
	Pos      int
	Fragment string
	Msg      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d near %q: %s", e.Pos, e.Fragment, e.Msg)
}

func errAt(pos int, fragment, format string, args ...interface{}) *ParseError {
	return &ParseError{Pos: pos, Fragment: fragment, Msg: fmt.Sprintf(format, args...)}
}

// term is one `name(args)` call as it appeared in the input.
type term struct {
	name string
	args []string
	pos  int
}

// Parse tokenizes a condition string into its canonical abstract form.
// Function terms may appear in any order; `Parse` then `String` then
// `Parse` again yields an equal AST.
func Parse(text string) (*Condition, error) {
	terms, err := scan(text)
	if err != nil {
		return nil, err
	}

	c := &Condition{}
	for _, t := range terms {
		if err := apply(c, t); err != nil {
			return nil, err
		}
	}
	c.normalize()
	return c, nil
}

// scan splits `name(arg,arg).name(arg)` chains into terms. Whitespace is
// tolerated between terms, never inside identifiers.
func scan(text string) ([]term, error) {
	var terms []term
	i := 0
	for i < len(text) {
		ch := text[i]
		if unicode.IsSpace(rune(ch)) {
			i++
			continue
		}
		if ch == '.' && len(terms) > 0 {
			i++
			continue
		}
		if !isIdentStart(ch) {
			return nil, errAt(i, string(ch), "expected function name")
		}
		start := i
		for i < len(text) && isIdentByte(text[i]) {
			i++
		}
		name := text[start:i]
		if i >= len(text) || text[i] != '(' {
			return nil, errAt(start, name, "expected %q after function name", "(")
		}
		i++ // consume '('
		argStart := i
		depth := 1
		for i < len(text) && depth > 0 {
			switch text[i] {
			case '(':
				depth++
			case ')':
				depth--
			}
			i++
		}
		if depth != 0 {
			return nil, errAt(start, text[start:], "unterminated argument list")
		}
		raw := text[argStart : i-1]
		var args []string
		if strings.TrimSpace(raw) != "" {
			for _, a := range strings.Split(raw, ",") {
				args = append(args, strings.TrimSpace(a))
			}
		}
		terms = append(terms, term{name: name, args: args, pos: start})
	}
	return terms, nil
}

func apply(c *Condition, t term) error {
	switch t.name {
	case "from":
		id, err := oneIdent(t)
		if err != nil {
			return err
		}
		if c.From != "" && c.From != id {
			return errAt(t.pos, id, "duplicate from()")
		}
		c.From = id
	case "to":
		id, err := oneIdent(t)
		if err != nil {
			return err
		}
		if c.To != "" && c.To != id {
			return errAt(t.pos, id, "duplicate to()")
		}
		c.To = id
	case "visited":
		ids, err := identList(t)
		if err != nil {
			return err
		}
		c.Visited = append(c.Visited, ids...)
	case "visitedAny":
		ids, err := identList(t)
		if err != nil {
			return err
		}
		c.AnyGroups = append(c.AnyGroups, ids)
	case "exclude":
		ids, err := identList(t)
		if err != nil {
			return err
		}
		c.Exclude = append(c.Exclude, ids...)
	case "minus":
		ids, err := identList(t)
		if err != nil {
			return err
		}
		c.Minus = append(c.Minus, ids)
	case "plus":
		ids, err := identList(t)
		if err != nil {
			return err
		}
		c.Plus = append(c.Plus, ids)
	case "context":
		if len(t.args) == 0 {
			return errAt(t.pos, t.name, "context() requires at least one key=value pair")
		}
		if c.Context == nil {
			c.Context = make(map[string]string, len(t.args))
		}
		for _, a := range t.args {
			k, v, ok := strings.Cut(a, "=")
			if !ok || k == "" {
				return errAt(t.pos, a, "context argument must be key=value")
			}
			c.Context[k] = v
		}
	case "cohort":
		if len(t.args) != 1 {
			return errAt(t.pos, t.name, "cohort() requires exactly one start:end argument")
		}
		start, end, ok := strings.Cut(t.args[0], ":")
		if !ok {
			return errAt(t.pos, t.args[0], "cohort argument must be start:end")
		}
		for _, d := range []string{start, end} {
			if _, err := time.Parse("2006-01-02", d); err != nil {
				return errAt(t.pos, d, "invalid date (want YYYY-MM-DD)")
			}
		}
		c.Window = &DateRange{Start: start, End: end}
	case "case":
		if len(t.args) != 1 {
			return errAt(t.pos, t.name, "case() requires exactly one id:variant argument")
		}
		id, variant, ok := strings.Cut(t.args[0], ":")
		if !ok || id == "" || variant == "" {
			return errAt(t.pos, t.args[0], "case argument must be id:variant")
		}
		c.Case = &CaseFilter{ID: id, Variant: variant}
	default:
		return errAt(t.pos, t.name, "unknown function %q", t.name)
	}
	return nil
}

func oneIdent(t term) (string, error) {
	if len(t.args) != 1 {
		return "", errAt(t.pos, t.name, "%s() requires exactly one node id", t.name)
	}
	if !validIdent(t.args[0]) {
		return "", errAt(t.pos, t.args[0], "invalid node id")
	}
	return t.args[0], nil
}

func identList(t term) ([]string, error) {
	if len(t.args) == 0 {
		return nil, errAt(t.pos, t.name, "%s() requires at least one node id", t.name)
	}
	for _, a := range t.args {
		if !validIdent(a) {
			return nil, errAt(t.pos, a, "invalid node id")
		}
	}
	return append([]string(nil), t.args...), nil
}

func validIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

func isIdentStart(ch byte) bool {
	return ch == '_' || unicode.IsLetter(rune(ch))
}

func isIdentByte(ch byte) bool {
	return ch == '_' || ch == '-' || unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch))
}
