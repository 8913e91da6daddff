package pattern

// Term is the runtime value the matcher walks: either a constructor
// application (with a variant id and fields reachable by index) or a leaf
// constant. The package's tests implement it directly; no other package in
// this module implements it.
type Term interface {
	// Variant reports the constructor variant id and field count of this
	// term, or ok=false if it is not an application term.
	Variant() (id, fieldCount int, ok bool)
	// Field returns the sub-term at index i of an application term.
	Field(i int) Term
	// ConstBool, ConstInt, ConstPrim report this term's value if it is
	// that kind of constant leaf.
	ConstBool() (v bool, ok bool)
	ConstInt() (v int64, typ string, ok bool)
	ConstPrim() (sym string, ok bool)
}

// Matcher walks a DecisionTree against concrete Terms, resolving Bindings
// by following the field-projection path recorded at compile time.
type Matcher struct {
	tree *DecisionTree
	rs   *RuleSet
}

// NewMatcher builds a matcher for tree using rs's binding-path table to
// resolve bindings to concrete sub-terms.
func NewMatcher(rs *RuleSet, tree *DecisionTree) *Matcher {
	return &Matcher{tree: tree, rs: rs}
}

// MatchResult is what Match returns on success: the matched rule and every
// binding the rule's pattern named, resolved to the concrete Term found
// there, ready for assembling the rule's result expression.
type MatchResult struct {
	Rule     *Rule
	Captures map[string]Term
}

// Match walks the tree against root. It returns ok=false if no rule
// applies (the partial/non-total semantics of spec.md §4.4's failure
// section); callers whose constructor is meant to be total should treat
// that as a bug at the tree's recorded Fail position.
func (m *Matcher) Match(root Term) (MatchResult, bool) {
	cache := map[Binding]Term{}
	resolve := func(b Binding) Term { return m.resolve(root, b, cache) }

	n := m.tree.root
	for {
		switch n.Kind {
		case NodeFail:
			return MatchResult{}, false
		case NodeLeaf:
			rule := m.tree.Rule(n.RuleIndex)
			cr := m.rs.compile(n.RuleIndex, rule)
			captures := make(map[string]Term, len(cr.captures))
			for name, b := range cr.captures {
				captures[name] = resolve(b)
			}
			return MatchResult{Rule: rule, Captures: captures}, true
		case NodeTestEqual:
			if termsEqual(resolve(n.A), resolve(n.B)) {
				n = n.OnEqual
			} else {
				n = n.OnNotEqual
			}
		case NodeSwitch:
			val := resolve(n.Binding)
			c, matched := constraintOf(val)
			if matched {
				if next, ok := n.Cases[c]; ok {
					n = next
					continue
				}
			}
			n = n.Default
		}
	}
}

// resolve navigates from root down the field-projection path recorded for
// b in rs, caching results within one Match call (a binding may be tested
// by both a Switch and a later TestEqual/Leaf capture).
func (m *Matcher) resolve(root Term, b Binding, cache map[Binding]Term) Term {
	if t, ok := cache[b]; ok {
		return t
	}
	key := m.rs.parentOf[b]
	var t Term
	if key.isRoot {
		t = root
	} else {
		parent := m.resolve(root, key.parent, cache)
		t = parent.Field(key.field)
	}
	cache[b] = t
	return t
}

func constraintOf(t Term) (Constraint, bool) {
	if id, n, ok := t.Variant(); ok {
		return Constraint{Kind: ConstraintVariant, VariantID: id, FieldCount: n}, true
	}
	if v, ok := t.ConstBool(); ok {
		return Constraint{Kind: ConstraintBool, BoolVal: v}, true
	}
	if v, typ, ok := t.ConstInt(); ok {
		return Constraint{Kind: ConstraintInt, IntVal: v, IntType: typ}, true
	}
	if s, ok := t.ConstPrim(); ok {
		return Constraint{Kind: ConstraintPrim, Sym: s}, true
	}
	return Constraint{}, false
}

func termsEqual(a, b Term) bool {
	if ai, af, aok := a.Variant(); aok {
		bi, bf, bok := b.Variant()
		if !bok || ai != bi || af != bf {
			return false
		}
		for i := 0; i < af; i++ {
			if !termsEqual(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	}
	if av, aok := a.ConstBool(); aok {
		bv, bok := b.ConstBool()
		return bok && av == bv
	}
	if av, atyp, aok := a.ConstInt(); aok {
		bv, btyp, bok := b.ConstInt()
		return bok && av == bv && atyp == btyp
	}
	if as, aok := a.ConstPrim(); aok {
		bs, bok := b.ConstPrim()
		return bok && as == bs
	}
	return false
}
