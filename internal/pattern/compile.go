package pattern

import (
	"sort"

	"go.uber.org/multierr"
)

// compile reduces rule's Pattern into the binding/constraint map described
// in spec.md §4.4, using rs's interning table so identical sub-term paths
// across rules share Binding ids.
func (rs *RuleSet) compile(index int, rule *Rule) *compiledRule {
	cr := &compiledRule{
		index:       index,
		rule:        rule,
		constraints: map[Binding]Constraint{},
		captures:    map[string]Binding{},
	}
	firstOccurrence := map[string]Binding{}
	var walk func(p *Pattern, b Binding)
	walk = func(p *Pattern, b Binding) {
		switch p.Kind {
		case Wildcard:
			// no constraint
		case Var:
			if prior, seen := firstOccurrence[p.VarName]; seen {
				cr.equalPairs = append(cr.equalPairs, [2]Binding{prior, b})
			} else {
				firstOccurrence[p.VarName] = b
				cr.captures[p.VarName] = b
			}
		case ConstBool:
			cr.constraints[b] = Constraint{Kind: ConstraintBool, BoolVal: p.BoolVal}
		case ConstInt:
			cr.constraints[b] = Constraint{Kind: ConstraintInt, IntVal: p.IntVal, IntType: p.IntType}
		case ConstPrim:
			cr.constraints[b] = Constraint{Kind: ConstraintPrim, Sym: p.Sym}
		case App:
			cr.constraints[b] = Constraint{Kind: ConstraintVariant, VariantID: p.VariantID, FieldCount: len(p.Args)}
			for i, sub := range p.Args {
				walk(sub, rs.Field(b, i))
			}
		case And:
			for _, sub := range p.SubPatterns {
				walk(sub, b)
			}
		}
	}
	walk(rule.Pattern, rs.root)
	return cr
}

// Compile compiles every rule added via AddRule into a DecisionTree,
// applying the optimization passes of spec.md §4.4 (collapse, share,
// drop-default-equal cases). Rules are sorted by priority, high first;
// ties preserve insertion order. Pattern-compile conflicts (spec.md §7.2)
// are aggregated with multierr rather than stopping at the first one.
func (rs *RuleSet) Compile() (*DecisionTree, error) {
	compiled := make([]*compiledRule, len(rs.rules))
	for i, r := range rs.rules {
		compiled[i] = rs.compile(i, r)
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return rs.rules[compiled[i].index].Priority > rs.rules[compiled[j].index].Priority
	})

	if err := detectConflicts(compiled); err != nil {
		return nil, err
	}

	root := buildNode(compiled, map[Binding]Constraint{})
	root = shareSubtrees(root, map[string]*Node{})
	return &DecisionTree{root: root, rules: rs.rules}, nil
}

// detectConflicts reports same-priority rule pairs whose constraints
// disagree at a shared binding in a way buildNode's Switch construction can
// never partition correctly. A ConstraintVariant or ConstraintBool mismatch
// is not such a case: both have a small, closed set of possible runtime
// values, and pickBinding/partitionByBinding always end up giving each
// distinct value its own Switch case (see buildAddSubRules's addZero/
// subSelf fixture, which differ only in the root binding's VariantID and
// compiles cleanly). ConstraintInt and ConstraintPrim mismatches are still
// flagged: their value domains are effectively unbounded, so two
// same-priority rules pinned to different literals at the same binding read
// as an authoring mistake (most likely a typo'd duplicate rule) rather than
// intentional discrimination, and are rejected defensively.
func detectConflicts(compiled []*compiledRule) error {
	var errs []error
	for i := 0; i < len(compiled); i++ {
		for j := i + 1; j < len(compiled); j++ {
			a, b := compiled[i], compiled[j]
			ruleA, ruleB := a.rule, b.rule
			if ruleA.Priority != ruleB.Priority {
				continue
			}
			for binding, ca := range a.constraints {
				cb, ok := b.constraints[binding]
				if !ok || ca == cb {
					continue
				}
				if switchDiscriminates(ca, cb) {
					continue
				}
				errs = append(errs, &ConflictError{Binding: binding, A: ruleA, B: ruleB})
			}
		}
	}
	return multierr.Combine(errs...)
}

// switchDiscriminates reports whether a Switch node on the binding these
// two constraints share is guaranteed to separate them into distinct
// cases, regardless of what other rules are present.
func switchDiscriminates(a, b Constraint) bool {
	return a.Kind == b.Kind && (a.Kind == ConstraintVariant || a.Kind == ConstraintBool)
}
