package dsl

import (
	"sort"
	"strings"
)

// Condition is the canonical abstract form of one path-constraint string.
//
// Visited and Exclude are AND-sets: every listed node is required or
// forbidden respectively. Each entry of AnyGroups is an independent
// "at least one of" group; groups are conjoined with each other and with
// the AND-sets. Minus and Plus hold the additive/subtractive sub-query
// terms produced by inclusion–exclusion compilation; each inner slice is a
// conjunction of nodes the sub-query must pass through.
type Condition struct {
	From      string
	To        string
	Visited   []string
	AnyGroups [][]string
	Exclude   []string
	Context   map[string]string
	Window    *DateRange
	Case      *CaseFilter
	Minus     [][]string
	Plus      [][]string
}

// DateRange is a cohort window, both bounds inclusive, `YYYY-MM-DD`.
type DateRange struct {
	Start string
	End   string
}

// CaseFilter pins the condition to one variant of an experiment case.
type CaseFilter struct {
	ID      string
	Variant string
}

// normalize sorts and de-duplicates every group so that two semantically
// identical conditions serialize to the same string.
func (c *Condition) normalize() {
	c.Visited = sortedSet(c.Visited)
	c.Exclude = sortedSet(c.Exclude)
	for i, g := range c.AnyGroups {
		c.AnyGroups[i] = sortedSet(g)
	}
	sortGroups(c.AnyGroups)
	for i, g := range c.Minus {
		c.Minus[i] = sortedSet(g)
	}
	sortGroups(c.Minus)
	for i, g := range c.Plus {
		c.Plus[i] = sortedSet(g)
	}
	sortGroups(c.Plus)
}

// String renders the canonical textual form: fixed function order
// (from, to, visited, visitedAny, exclude, context, cohort, case, minus,
// plus), identifiers sorted within each group, no whitespace.
func (c *Condition) String() string {
	cc := c.Clone()
	cc.normalize()

	var b strings.Builder
	term := func(name string, args ...string) {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(name)
		b.WriteByte('(')
		b.WriteString(strings.Join(args, ","))
		b.WriteByte(')')
	}

	if cc.From != "" {
		term("from", cc.From)
	}
	if cc.To != "" {
		term("to", cc.To)
	}
	if len(cc.Visited) > 0 {
		term("visited", cc.Visited...)
	}
	for _, g := range cc.AnyGroups {
		if len(g) > 0 {
			term("visitedAny", g...)
		}
	}
	if len(cc.Exclude) > 0 {
		term("exclude", cc.Exclude...)
	}
	if len(cc.Context) > 0 {
		keys := make([]string, 0, len(cc.Context))
		for k := range cc.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + cc.Context[k]
		}
		term("context", pairs...)
	}
	if cc.Window != nil {
		term("cohort", cc.Window.Start+":"+cc.Window.End)
	}
	if cc.Case != nil {
		term("case", cc.Case.ID+":"+cc.Case.Variant)
	}
	for _, g := range cc.Minus {
		term("minus", g...)
	}
	for _, g := range cc.Plus {
		term("plus", g...)
	}
	return b.String()
}

// Clone returns a deep copy; the compiler never mutates caller-owned ASTs.
func (c *Condition) Clone() *Condition {
	cc := &Condition{
		From:    c.From,
		To:      c.To,
		Visited: append([]string(nil), c.Visited...),
		Exclude: append([]string(nil), c.Exclude...),
	}
	for _, g := range c.AnyGroups {
		cc.AnyGroups = append(cc.AnyGroups, append([]string(nil), g...))
	}
	for _, g := range c.Minus {
		cc.Minus = append(cc.Minus, append([]string(nil), g...))
	}
	for _, g := range c.Plus {
		cc.Plus = append(cc.Plus, append([]string(nil), g...))
	}
	if len(c.Context) > 0 {
		cc.Context = make(map[string]string, len(c.Context))
		for k, v := range c.Context {
			cc.Context[k] = v
		}
	}
	if c.Window != nil {
		w := *c.Window
		cc.Window = &w
	}
	if c.Case != nil {
		cf := *c.Case
		cc.Case = &cf
	}
	return cc
}

// Equal reports semantic equality via canonical serialization.
func (c *Condition) Equal(other *Condition) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.String() == other.String()
}

// Nodes returns every node id the condition references, sorted.
func (c *Condition) Nodes() []string {
	seen := make(map[string]struct{})
	add := func(ids ...string) {
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	if c.From != "" {
		add(c.From)
	}
	if c.To != "" {
		add(c.To)
	}
	add(c.Visited...)
	add(c.Exclude...)
	for _, g := range c.AnyGroups {
		add(g...)
	}
	for _, g := range c.Minus {
		add(g...)
	}
	for _, g := range c.Plus {
		add(g...)
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sortedSet(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := append([]string(nil), ids...)
	sort.Strings(out)
	dst := out[:1]
	for _, id := range out[1:] {
		if id != dst[len(dst)-1] {
			dst = append(dst, id)
		}
	}
	return dst
}

func sortGroups(groups [][]string) {
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
}
