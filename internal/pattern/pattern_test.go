package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// leafTerm is a ConstInt/ConstBool/ConstPrim terminal Term.
type leafTerm struct {
	isInt  bool
	intVal int64
	intTyp string

	isBool  bool
	boolVal bool

	isPrim bool
	prim   string
}

func (l leafTerm) Variant() (int, int, bool)      { return 0, 0, false }
func (l leafTerm) Field(i int) Term               { panic("leaf has no fields") }
func (l leafTerm) ConstBool() (bool, bool)        { return l.boolVal, l.isBool }
func (l leafTerm) ConstInt() (int64, string, bool) { return l.intVal, l.intTyp, l.isInt }
func (l leafTerm) ConstPrim() (string, bool)      { return l.prim, l.isPrim }

func intLeaf(v int64) Term  { return leafTerm{isInt: true, intVal: v, intTyp: "i32"} }
func primLeaf(s string) Term { return leafTerm{isPrim: true, prim: s} }

// appTerm is an App-pattern Term: a tagged variant with ordered fields.
type appTerm struct {
	variant int
	fields  []Term
}

func (a appTerm) Variant() (int, int, bool)      { return a.variant, len(a.fields), true }
func (a appTerm) Field(i int) Term               { return a.fields[i] }
func (a appTerm) ConstBool() (bool, bool)        { return false, false }
func (a appTerm) ConstInt() (int64, string, bool) { return 0, "", false }
func (a appTerm) ConstPrim() (string, bool)      { return "", false }

const (
	variantAdd = iota
	variantSub
	variantConst
)

func constPattern(v int64) *Pattern {
	return &Pattern{Kind: ConstInt, IntVal: v, IntType: "i32"}
}

// buildAddSubRules sets up: add(x, const 0) -> x [prio 10]
//                             sub(x, x)      -> const 0 [prio 10]
//                             add(x, y)      -> generic add [prio 0]
// mirroring the kind of peephole-as-pattern-rule shape the ir peephole pass
// implements imperatively; here it is data instead of code.
func buildAddSubRules(t *testing.T) (*RuleSet, *DecisionTree) {
	t.Helper()
	rs := NewRuleSet()

	addZero := &Rule{
		Pattern: &Pattern{Kind: App, VariantID: variantAdd, Args: []*Pattern{
			{Kind: Var, VarName: "x"},
			constPattern(0),
		}},
		Result:   "x",
		Priority: 10,
		Pos:      SourcePos{File: "rules.go", Line: 1},
	}
	subSelf := &Rule{
		Pattern: &Pattern{Kind: App, VariantID: variantSub, Args: []*Pattern{
			{Kind: Var, VarName: "x"},
			{Kind: Var, VarName: "x"},
		}},
		Result:   "zero",
		Priority: 10,
		Pos:      SourcePos{File: "rules.go", Line: 2},
	}
	genericAdd := &Rule{
		Pattern: &Pattern{Kind: App, VariantID: variantAdd, Args: []*Pattern{
			{Kind: Var, VarName: "x"},
			{Kind: Var, VarName: "y"},
		}},
		Result:   "add",
		Priority: 0,
		Pos:      SourcePos{File: "rules.go", Line: 3},
	}

	rs.AddRule(addZero)
	rs.AddRule(subSelf)
	rs.AddRule(genericAdd)

	tree, err := rs.Compile()
	require.NoError(t, err)
	return rs, tree
}

func TestAddZeroPrefersSpecificOverGeneric(t *testing.T) {
	rs, tree := buildAddSubRules(t)
	m := NewMatcher(rs, tree)

	term := appTerm{variant: variantAdd, fields: []Term{primLeaf("x"), intLeaf(0)}}
	res, ok := m.Match(term)
	require.True(t, ok)
	assert.Equal(t, "x", res.Rule.Result)
}

func TestGenericAddFallsThroughWhenNotZero(t *testing.T) {
	rs, tree := buildAddSubRules(t)
	m := NewMatcher(rs, tree)

	term := appTerm{variant: variantAdd, fields: []Term{primLeaf("x"), intLeaf(7)}}
	res, ok := m.Match(term)
	require.True(t, ok)
	assert.Equal(t, "add", res.Rule.Result)
}

func TestSubSelfUsesTestEqual(t *testing.T) {
	rs, tree := buildAddSubRules(t)
	m := NewMatcher(rs, tree)

	same := primLeaf("v")
	matched := appTerm{variant: variantSub, fields: []Term{same, same}}
	res, ok := m.Match(matched)
	require.True(t, ok)
	assert.Equal(t, "zero", res.Rule.Result)

	notSame := appTerm{variant: variantSub, fields: []Term{primLeaf("v"), primLeaf("w")}}
	_, ok = m.Match(notSame)
	assert.False(t, ok, "distinct operands never satisfy the sub(x, x) rule, no other rule covers sub")
}

func TestUnmatchedVariantFails(t *testing.T) {
	rs, tree := buildAddSubRules(t)
	m := NewMatcher(rs, tree)

	term := appTerm{variant: variantConst, fields: nil}
	_, ok := m.Match(term)
	assert.False(t, ok)
}

func TestCompileIsDeterministicAcrossRuns(t *testing.T) {
	_, treeA := buildAddSubRules(t)
	_, treeB := buildAddSubRules(t)
	assert.True(t, structurallyEqual(treeA.root, treeB.root),
		"compiling the same rule set twice must produce structurally identical trees")
}

func TestSamePriorityConflictIsDetected(t *testing.T) {
	rs := NewRuleSet()
	rs.AddRule(&Rule{
		Pattern:  &Pattern{Kind: App, VariantID: variantAdd, Args: []*Pattern{constPattern(1)}},
		Priority: 5,
		Pos:      SourcePos{File: "a.go", Line: 1},
	})
	rs.AddRule(&Rule{
		Pattern:  &Pattern{Kind: App, VariantID: variantAdd, Args: []*Pattern{constPattern(2)}},
		Priority: 5,
		Pos:      SourcePos{File: "b.go", Line: 1},
	})
	_, err := rs.Compile()
	require.Error(t, err)
}

func TestUnconstrainedRuleCompilesToLeaf(t *testing.T) {
	rs := NewRuleSet()
	// A lone wildcard rule constrains no binding, so the compiled tree is a
	// single leaf with no Switch node at all.
	rs.AddRule(&Rule{
		Pattern:  &Pattern{Kind: Wildcard},
		Result:   "always",
		Priority: 0,
		Pos:      SourcePos{File: "c.go", Line: 1},
	})
	tree, err := rs.Compile()
	require.NoError(t, err)
	assert.Equal(t, NodeLeaf, tree.root.Kind)
}
