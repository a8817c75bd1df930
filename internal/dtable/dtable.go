// Package dtable builds decision tables that map instruction encodings to the
// first matching rule of an ordered rule set.
//
// The table is a trie over the eight nibbles of a 32-bit word. Which nibble a
// node tests is chosen by the highest-priority rule still live at that node,
// and subtrees are shared whenever the same rules are live after the same
// nibbles have been tested, so the many condition-code variants of an
// instruction collapse onto one subtree. Nodes are stored in a single slice
// and refer to each other by index.
package dtable

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Rule is one line of a declarative rule set.
type Rule struct {
	// Bits is the pattern source, see ParsePattern.
	Bits  string
	Class int
	Name  string

	// Pattern is filled in by Build.
	Pattern Pattern
}

// noMatch is the index of the shared leaf reached by words no rule covers.
const noMatch int32 = 0

type node struct {
	leaf bool
	// rule is the index of the matched rule for leaves, -1 for noMatch.
	rule int32
	// nib is the nibble tested by an inner node.
	nib  uint8
	next [16]int32
}

// Table is an immutable decision table. It is safe for concurrent use.
type Table struct {
	rules []Rule
	nodes []node
	root  int32
}

// Build parses rules and constructs the table. Earlier rules take priority.
func Build(rules []Rule) (*Table, error) {
	t := &Table{rules: make([]Rule, len(rules))}
	for i, r := range rules {
		p, err := ParsePattern(r.Bits)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		r.Pattern = p
		t.rules[i] = r
	}

	b := &builder{
		t:     t,
		memo:  make(map[string]int32),
		dedup: make(map[node]int32),
	}
	t.nodes = append(t.nodes, node{leaf: true, rule: -1})

	live := make([]int32, len(t.rules))
	for i := range live {
		live[i] = int32(i)
	}
	t.root = b.build(live, 0)
	return t, nil
}

type builder struct {
	t *Table
	// memo maps (tested nibbles, live rules) to an emitted subtree.
	memo map[string]int32
	// dedup maps node contents to an emitted node.
	dedup map[node]int32
	key   []byte
}

func (b *builder) memoKey(live []int32, tested uint8) string {
	b.key = append(b.key[:0], tested)
	for _, r := range live {
		b.key = binary.AppendUvarint(b.key, uint64(r))
	}
	return string(b.key)
}

func (b *builder) build(live []int32, tested uint8) int32 {
	if len(live) == 0 {
		return noMatch
	}
	key := b.memoKey(live, tested)
	if id, ok := b.memo[key]; ok {
		return id
	}

	id := b.emit(b.split(live, tested))
	b.memo[key] = id
	return id
}

// split picks the next nibble to test from the first live rule and builds
// one child per nibble value.
func (b *builder) split(live []int32, tested uint8) node {
	first := b.t.rules[live[0]].Pattern
	nib := -1
	for n := 7; n >= 0; n-- {
		if tested&(1<<n) != 0 {
			continue
		}
		if m, _ := first.nibble(uint(n)); m != 0 {
			nib = n
			break
		}
	}
	if nib < 0 {
		// Every constrained bit of the first rule has been tested and
		// it survived the filtering, so it matches.
		return node{leaf: true, rule: live[0]}
	}

	nd := node{nib: uint8(nib)}
	sub := make([]int32, 0, len(live))
	for v := uint32(0); v < 16; v++ {
		sub = sub[:0]
		for _, r := range live {
			m, val := b.t.rules[r].Pattern.nibble(uint(nib))
			if v&m == val {
				sub = append(sub, r)
			}
		}
		nd.next[v] = b.build(append([]int32(nil), sub...), tested|1<<nib)
	}
	for v := 1; v < 16; v++ {
		if nd.next[v] != nd.next[0] {
			return nd
		}
	}
	// All values lead to the same place; the test is redundant.
	return b.t.nodes[nd.next[0]]
}

func (b *builder) emit(nd node) int32 {
	if nd.leaf && nd.rule < 0 {
		return noMatch
	}
	if id, ok := b.dedup[nd]; ok {
		return id
	}
	id := int32(len(b.t.nodes))
	b.t.nodes = append(b.t.nodes, nd)
	b.dedup[nd] = id
	return id
}

// Lookup returns the first rule matching w.
func (t *Table) Lookup(w uint32) (Rule, bool) {
	i := t.root
	for {
		n := &t.nodes[i]
		if n.leaf {
			if n.rule < 0 {
				return Rule{}, false
			}
			return t.rules[n.rule], true
		}
		i = n.next[(w>>(4*uint(n.nib)))&0xf]
	}
}

// Rules returns the rule set in priority order.
func (t *Table) Rules() []Rule { return t.rules }

// Stats describes the shape of a table.
type Stats struct {
	Rules  int
	Nodes  int
	Leaves int
	Depth  int
	// Shadowed lists rules no word can reach because earlier rules cover
	// them entirely.
	Shadowed []string
}

func (s Stats) String() string {
	return fmt.Sprintf("%d rules, %d nodes (%d leaves), depth %d, %d shadowed",
		s.Rules, s.Nodes, s.Leaves, s.Depth, len(s.Shadowed))
}

// Stats walks the table once.
func (t *Table) Stats() Stats {
	s := Stats{Rules: len(t.rules), Nodes: len(t.nodes)}
	reached := make([]bool, len(t.rules))
	for _, n := range t.nodes {
		if n.leaf {
			s.Leaves++
			if n.rule >= 0 {
				reached[n.rule] = true
			}
		}
	}
	for i, ok := range reached {
		if !ok {
			s.Shadowed = append(s.Shadowed, t.rules[i].Name)
		}
	}
	depth := make(map[int32]int)
	s.Depth = t.depth(t.root, depth)
	return s
}

func (t *Table) depth(i int32, memo map[int32]int) int {
	if d, ok := memo[i]; ok {
		return d
	}
	n := &t.nodes[i]
	d := 0
	if !n.leaf {
		for _, c := range n.next {
			d = max(d, t.depth(c, memo)+1)
		}
	}
	memo[i] = d
	return d
}

var indent = strings.Repeat("  ", 16)

// Dump writes the table as an indented tree. A subtree reached a second
// time is printed as a reference to its node number.
func (t *Table) Dump(w io.Writer) error {
	seen := make(map[int32]bool)
	return t.dump(w, t.root, 0, seen)
}

func (t *Table) dump(w io.Writer, i int32, depth int, seen map[int32]bool) error {
	pad := indent[:min(2*depth, len(indent))]
	n := &t.nodes[i]
	if n.leaf {
		if n.rule < 0 {
			_, err := fmt.Fprintf(w, "%s-\n", pad)
			return err
		}
		r := t.rules[n.rule]
		_, err := fmt.Fprintf(w, "%s%s\n", pad, r.Name)
		return err
	}
	if seen[i] {
		_, err := fmt.Fprintf(w, "%s-> #%d\n", pad, i)
		return err
	}
	seen[i] = true
	lo := 4 * int(n.nib)
	if _, err := fmt.Fprintf(w, "%s#%d bits %d:%d\n", pad, i, lo+3, lo); err != nil {
		return err
	}
	for v := 0; v < 16; {
		end := v
		for end+1 < 16 && n.next[end+1] == n.next[v] {
			end++
		}
		label := fmt.Sprintf("%x", v)
		if end > v {
			label = fmt.Sprintf("%x-%x", v, end)
		}
		if _, err := fmt.Fprintf(w, "%s  %s:\n", pad, label); err != nil {
			return err
		}
		if err := t.dump(w, n.next[v], depth+2, seen); err != nil {
			return err
		}
		v = end + 1
	}
	return nil
}
