package dsl

import (
	"errors"
	"testing"
)

type parseCase struct {
	name    string
	in      string
	want    string // canonical serialization, "" means same as in
	wantErr bool
}

func TestParseSerialize(t *testing.T) {
	cases := []parseCase{
		{
			name: "already canonical",
			in:   "from(a).to(c).visited(b)",
		},
		{
			name: "terms reordered",
			in:   "visited(b).to(c).from(a)",
			want: "from(a).to(c).visited(b)",
		},
		{
			name: "identifiers sorted",
			in:   "from(a).to(z).visited(m,b,k)",
			want: "from(a).to(z).visited(b,k,m)",
		},
		{
			name: "duplicate ids collapse",
			in:   "from(a).to(c).exclude(b,b,d)",
			want: "from(a).to(c).exclude(b,d)",
		},
		{
			name: "repeated visited calls union",
			in:   "from(a).to(c).visited(x).visited(y)",
			want: "from(a).to(c).visited(x,y)",
		},
		{
			name: "visitedAny groups stay independent",
			in:   "from(a).to(c).visitedAny(d,b).visitedAny(f,e)",
			want: "from(a).to(c).visitedAny(b,d).visitedAny(e,f)",
		},
		{
			name: "visitedAny groups ordered deterministically",
			in:   "from(a).to(c).visitedAny(z).visitedAny(b)",
			want: "from(a).to(c).visitedAny(b).visitedAny(z)",
		},
		{
			name: "full chain",
			in:   "cohort(2024-01-01:2024-03-31).context(region=eu,plan=pro).exclude(x).from(a).to(b).visited(m).case(exp7:control)",
			want: "from(a).to(b).visited(m).exclude(x).context(plan=pro,region=eu).cohort(2024-01-01:2024-03-31).case(exp7:control)",
		},
		{
			name: "minus and plus terms",
			in:   "from(a).to(c).minus(d).minus(b).plus(b,d)",
			want: "from(a).to(c).minus(b).minus(d).plus(b,d)",
		},
		{
			name: "whitespace tolerated",
			in:   " from( a ) . to( c ) ",
			want: "from(a).to(c)",
		},
		{
			name: "endpoints optional",
			in:   "exclude(b)",
		},
		{name: "unknown function", in: "from(a).through(b)", wantErr: true},
		{name: "missing parens", in: "from a", wantErr: true},
		{name: "unterminated args", in: "from(a).visited(b", wantErr: true},
		{name: "empty visited", in: "from(a).visited()", wantErr: true},
		{name: "two different froms", in: "from(a).from(b)", wantErr: true},
		{name: "bad node id", in: "visited(a b)", wantErr: true},
		{name: "bad context pair", in: "context(region)", wantErr: true},
		{name: "bad cohort date", in: "cohort(2024-1-1:2024-02-01)", wantErr: true},
		{name: "case without variant", in: "case(exp7)", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Parse(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q): expected error, got %q", tc.in, c.String())
				}
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("Parse(%q): error is %T, want *ParseError", tc.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tc.in, err)
			}
			want := tc.want
			if want == "" {
				want = tc.in
			}
			if got := c.String(); got != want {
				t.Errorf("serialize: got %q, want %q", got, want)
			}
		})
	}
}

// Canonicalization must be a fixed point: serialize(parse(s)) survives
// another parse/serialize round-trip unchanged.
func TestCanonicalizationIdempotent(t *testing.T) {
	inputs := []string{
		"visited(z,a).from(n1).to(n9).exclude(q).visitedAny(c,b)",
		"to(f).from(e).visitedAny(d,c)",
		"from(a).to(c).minus(d).minus(b)",
		"context(b=2,a=1).from(x).to(y).cohort(2023-06-01:2023-06-30)",
	}
	for _, in := range inputs {
		first, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		second, err := Parse(first.String())
		if err != nil {
			t.Fatalf("reparse of %q: %v", first.String(), err)
		}
		if first.String() != second.String() {
			t.Errorf("not idempotent: %q vs %q", first.String(), second.String())
		}
		if !first.Equal(second) {
			t.Errorf("round-tripped AST differs for %q", in)
		}
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("from(a).through(b)")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if pe.Fragment != "through" {
		t.Errorf("fragment: got %q, want %q", pe.Fragment, "through")
	}
	if pe.Pos != 8 {
		t.Errorf("pos: got %d, want 8", pe.Pos)
	}
}

func TestCloneIsDeep(t *testing.T) {
	c, err := Parse("from(a).to(b).visited(x).visitedAny(p,q).context(k=v)")
	if err != nil {
		t.Fatal(err)
	}
	cc := c.Clone()
	cc.Visited[0] = "mutated"
	cc.AnyGroups[0][0] = "mutated"
	cc.Context["k"] = "mutated"
	if c.Visited[0] != "x" || c.AnyGroups[0][0] != "p" || c.Context["k"] != "v" {
		t.Errorf("Clone shares state with original: %v", c)
	}
}

func TestNodes(t *testing.T) {
	c, err := Parse("from(e).to(f).visitedAny(c,d).exclude(b)")
	if err != nil {
		t.Fatal(err)
	}
	got := c.Nodes()
	want := []string{"b", "c", "d", "e", "f"}
	if len(got) != len(want) {
		t.Fatalf("Nodes: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Nodes: got %v, want %v", got, want)
		}
	}
}
