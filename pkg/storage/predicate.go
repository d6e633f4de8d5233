package storage

import "fmt"

// PredicateOp is the comparison applied by a PropertyPredicate
type PredicateOp uint8

const (
	// OpDontCare matches when the property exists, whatever its value
	OpDontCare PredicateOp = iota
	// OpAbsent matches when the property does not exist
	OpAbsent
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	// Range operators: Ge/Gt applies to V1, Le/Lt to V2
	OpGeLe
	OpGeLt
	OpGtLe
	OpGtLt
)

var predicateOpNames = map[PredicateOp]string{
	OpDontCare: "exists",
	OpAbsent:   "absent",
	OpEq:       "eq",
	OpNe:       "ne",
	OpLt:       "lt",
	OpLe:       "le",
	OpGt:       "gt",
	OpGe:       "ge",
	OpGeLe:     "ge_le",
	OpGeLt:     "ge_lt",
	OpGtLe:     "gt_le",
	OpGtLt:     "gt_lt",
}

func (op PredicateOp) String() string {
	if name, ok := predicateOpNames[op]; ok {
		return name
	}
	return fmt.Sprintf("PredicateOp(%d)", uint8(op))
}

// Operands returns how many values the operator consumes
func (op PredicateOp) Operands() int {
	switch op {
	case OpDontCare, OpAbsent:
		return 0
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return 1
	case OpGeLe, OpGeLt, OpGtLe, OpGtLt:
		return 2
	default:
		return -1
	}
}

// PropertyPredicate is a native comparison against one property key
type PropertyPredicate struct {
	Key string
	Op  PredicateOp
	V1  Value
	V2  Value
}

func (p PropertyPredicate) String() string {
	switch p.Op.Operands() {
	case 0:
		return fmt.Sprintf("%s %s", p.Key, p.Op)
	case 1:
		return fmt.Sprintf("%s %s %s", p.Key, p.Op, p.V1)
	default:
		return fmt.Sprintf("%s %s [%s, %s]", p.Key, p.Op, p.V1, p.V2)
	}
}

// Matches evaluates the predicate against a property map. Values that cannot be
// ordered against the operand never satisfy an ordering operator.
func (p PropertyPredicate) Matches(props map[string]Value) bool {
	v, ok := props[p.Key]
	switch p.Op {
	case OpDontCare:
		return ok
	case OpAbsent:
		return !ok
	}
	if !ok {
		return false
	}

	switch p.Op {
	case OpEq:
		c, comparable := CompareValues(v, p.V1)
		return comparable && c == 0
	case OpNe:
		c, comparable := CompareValues(v, p.V1)
		return !comparable || c != 0
	case OpLt:
		return compareIs(v, p.V1, func(c int) bool { return c < 0 })
	case OpLe:
		return compareIs(v, p.V1, func(c int) bool { return c <= 0 })
	case OpGt:
		return compareIs(v, p.V1, func(c int) bool { return c > 0 })
	case OpGe:
		return compareIs(v, p.V1, func(c int) bool { return c >= 0 })
	case OpGeLe:
		return compareIs(v, p.V1, func(c int) bool { return c >= 0 }) &&
			compareIs(v, p.V2, func(c int) bool { return c <= 0 })
	case OpGeLt:
		return compareIs(v, p.V1, func(c int) bool { return c >= 0 }) &&
			compareIs(v, p.V2, func(c int) bool { return c < 0 })
	case OpGtLe:
		return compareIs(v, p.V1, func(c int) bool { return c > 0 }) &&
			compareIs(v, p.V2, func(c int) bool { return c <= 0 })
	case OpGtLt:
		return compareIs(v, p.V1, func(c int) bool { return c > 0 }) &&
			compareIs(v, p.V2, func(c int) bool { return c < 0 })
	default:
		return false
	}
}

func compareIs(v, operand Value, accept func(int) bool) bool {
	c, ok := CompareValues(v, operand)
	return ok && accept(c)
}

// matchAll combines predicates with AND, or with OR when or is set.
// An empty predicate list always matches.
func matchAll(preds []PropertyPredicate, or bool, props map[string]Value) bool {
	if len(preds) == 0 {
		return true
	}
	for _, p := range preds {
		m := p.Matches(props)
		if or && m {
			return true
		}
		if !or && !m {
			return false
		}
	}
	return !or
}
