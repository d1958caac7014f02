package constraint

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strings"

	"github.com/nomagicln/ipogen/pkg/tuple"
	"github.com/vulcand/predicate"
)

// condition is a boolean-valued node of a parsed constraint expression.
type condition func(*tuple.Tuple) (bool, error)

// operand is a value-valued node: a factor reference or a literal.
type operand func(*tuple.Tuple) (any, error)

// Expr is a Checker compiled from a constraint expression.
//
// The language is Go expression syntax evaluated by vulcand/predicate:
//   - identifiers name factors: os == "linux"
//   - Factor("name") references factors whose names are not identifiers
//   - comparisons: ==, !=, <, <=, >, >=
//   - logic: &&, ||, !, Implies(p, q), Iff(p, q)
//   - literals: strings, integers, floats (negative too), true, false
//
// A bare factor reference is a condition when the factor's level is a bool.
// Implies and Iff are rewritten into &&, || and ! before evaluation, so their
// arguments may be any condition.
type Expr struct {
	source  string
	symbols []string
	cond    condition
}

// ParseExpr compiles a constraint expression.
func ParseExpr(src string) (*Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, errors.New("empty constraint expression")
	}

	seen := make(map[string]struct{})
	ref := func(name string) operand {
		seen[name] = struct{}{}
		return factorRef(name)
	}

	rewritten, err := desugar(src)
	if err != nil {
		return nil, fmt.Errorf("invalid constraint expression %q: %w", src, err)
	}

	p, err := predicate.NewParser(predicate.Def{
		Functions: map[string]any{
			"Factor": func(name string) operand { return ref(name) },
			"Neg":    negate,
		},
		Operators: predicate.Operators{
			AND: and,
			OR:  or,
			NOT: not,
			EQ:  compare("==", func(c int) bool { return c == 0 }),
			NEQ: compare("!=", func(c int) bool { return c != 0 }),
			LT:  compare("<", func(c int) bool { return c < 0 }),
			LE:  compare("<=", func(c int) bool { return c <= 0 }),
			GT:  compare(">", func(c int) bool { return c > 0 }),
			GE:  compare(">=", func(c int) bool { return c >= 0 }),
		},
		GetIdentifier: func(selector []string) (any, error) {
			name := strings.Join(selector, ".")
			switch name {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
			return ref(name), nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create parser: %w", err)
	}

	out, err := p.Parse(rewritten)
	if err != nil {
		return nil, fmt.Errorf("invalid constraint expression %q: %w", src, err)
	}

	cond, err := asCondition(out)
	if err != nil {
		return nil, fmt.Errorf("invalid constraint expression %q: %w", src, err)
	}

	symbols := make([]string, 0, len(seen))
	for name := range seen {
		symbols = append(symbols, name)
	}
	sort.Strings(symbols)

	return &Expr{source: src, symbols: symbols, cond: cond}, nil
}

// MustParseExpr is like ParseExpr but panics on error.
func MustParseExpr(src string) *Expr {
	e, err := ParseExpr(src)
	if err != nil {
		panic(err)
	}
	return e
}

// Check evaluates the expression against t.
func (e *Expr) Check(t *tuple.Tuple) (bool, error) {
	return e.cond(t)
}

// Source returns the expression text.
func (e *Expr) Source() string { return e.source }

// Symbols returns the sorted factor names the expression refers to.
func (e *Expr) Symbols() []string {
	out := make([]string, len(e.symbols))
	copy(out, e.symbols)
	return out
}

func (e *Expr) String() string { return e.source }

func factorRef(name string) operand {
	return func(t *tuple.Tuple) (any, error) {
		l, ok := t.Get(name)
		if !ok || l.IsDontCare() {
			return nil, &UndefinedSymbolError{Name: name}
		}
		return l.Get(), nil
	}
}

func literal(v any) operand {
	return func(*tuple.Tuple) (any, error) { return v, nil }
}

func asOperand(v any) operand {
	switch x := v.(type) {
	case operand:
		return x
	case condition:
		return func(t *tuple.Tuple) (any, error) { return x(t) }
	default:
		return literal(x)
	}
}

func asCondition(v any) (condition, error) {
	switch x := v.(type) {
	case condition:
		return x, nil
	case bool:
		return func(*tuple.Tuple) (bool, error) { return x, nil }, nil
	case operand:
		return func(t *tuple.Tuple) (bool, error) {
			val, err := x(t)
			if err != nil {
				return false, err
			}
			b, ok := val.(bool)
			if !ok {
				return false, fmt.Errorf("value %v (%T) is not a boolean", val, val)
			}
			return b, nil
		}, nil
	default:
		return nil, fmt.Errorf("expression must evaluate to a boolean, got %T", v)
	}
}

func mustCondition(v any) condition {
	c, err := asCondition(v)
	if err != nil {
		return func(*tuple.Tuple) (bool, error) { return false, err }
	}
	return c
}

// and is false as soon as either side is false, even if the other side is
// undecidable.
func and(a, b any) condition {
	ca, cb := mustCondition(a), mustCondition(b)
	return func(t *tuple.Tuple) (bool, error) {
		return combine(t, ca, cb, false)
	}
}

// or is true as soon as either side is true.
func or(a, b any) condition {
	ca, cb := mustCondition(a), mustCondition(b)
	return func(t *tuple.Tuple) (bool, error) {
		return combine(t, ca, cb, true)
	}
}

func combine(t *tuple.Tuple, a, b condition, dominant bool) (bool, error) {
	var undefined error
	for _, c := range []condition{a, b} {
		v, err := c(t)
		if err != nil {
			if !errors.Is(err, ErrUndefinedSymbol) {
				return false, err
			}
			if undefined == nil {
				undefined = err
			}
			continue
		}
		if v == dominant {
			return dominant, nil
		}
	}
	if undefined != nil {
		return false, undefined
	}
	return !dominant, nil
}

func not(a any) condition {
	ca := mustCondition(a)
	return func(t *tuple.Tuple) (bool, error) {
		v, err := ca(t)
		if err != nil {
			return false, err
		}
		return !v, nil
	}
}

func negate(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return -n, nil
	case float64:
		return -n, nil
	default:
		return nil, fmt.Errorf("cannot negate %v (%T)", v, v)
	}
}

// desugar parses src as a Go expression and prints it back with Implies(p, q)
// as !(p) || (q), Iff(p, q) as (p) && (q) || !(p) && !(q), and -<number> as
// Neg(<number>). The predicate parser only accepts literals, identifiers and
// calls as function arguments and has no unary minus.
func desugar(src string) (string, error) {
	node, err := parser.ParseExpr(src)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := writeExpr(&sb, node); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeExpr(sb *strings.Builder, e ast.Expr) error {
	switch n := e.(type) {
	case *ast.BasicLit:
		sb.WriteString(n.Value)
	case *ast.Ident:
		sb.WriteString(n.Name)
	case *ast.SelectorExpr:
		if err := writeExpr(sb, n.X); err != nil {
			return err
		}
		sb.WriteString(".")
		sb.WriteString(n.Sel.Name)
	case *ast.ParenExpr:
		sb.WriteString("(")
		if err := writeExpr(sb, n.X); err != nil {
			return err
		}
		sb.WriteString(")")
	case *ast.UnaryExpr:
		if lit, ok := n.X.(*ast.BasicLit); ok && n.Op == token.SUB && (lit.Kind == token.INT || lit.Kind == token.FLOAT) {
			fmt.Fprintf(sb, "Neg(%s)", lit.Value)
			return nil
		}
		sb.WriteString(n.Op.String())
		return writeExpr(sb, n.X)
	case *ast.BinaryExpr:
		if err := writeExpr(sb, n.X); err != nil {
			return err
		}
		fmt.Fprintf(sb, " %s ", n.Op)
		return writeExpr(sb, n.Y)
	case *ast.IndexExpr:
		if err := writeExpr(sb, n.X); err != nil {
			return err
		}
		sb.WriteString("[")
		if err := writeExpr(sb, n.Index); err != nil {
			return err
		}
		sb.WriteString("]")
	case *ast.CallExpr:
		return writeCall(sb, n)
	default:
		return fmt.Errorf("%T is not supported", e)
	}
	return nil
}

func writeCall(sb *strings.Builder, call *ast.CallExpr) error {
	name, _ := call.Fun.(*ast.Ident)
	if name != nil && (name.Name == "Implies" || name.Name == "Iff") {
		if len(call.Args) != 2 {
			return fmt.Errorf("%s takes 2 arguments, got %d", name.Name, len(call.Args))
		}
		var p, q strings.Builder
		if err := writeExpr(&p, call.Args[0]); err != nil {
			return err
		}
		if err := writeExpr(&q, call.Args[1]); err != nil {
			return err
		}
		if name.Name == "Implies" {
			fmt.Fprintf(sb, "(!(%s) || (%s))", p.String(), q.String())
		} else {
			fmt.Fprintf(sb, "((%[1]s) && (%[2]s) || !(%[1]s) && !(%[2]s))", p.String(), q.String())
		}
		return nil
	}

	if err := writeExpr(sb, call.Fun); err != nil {
		return err
	}
	sb.WriteString("(")
	for i, arg := range call.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		if err := writeExpr(sb, arg); err != nil {
			return err
		}
	}
	sb.WriteString(")")
	return nil
}

func compare(op string, accept func(int) bool) func(a, b any) condition {
	return func(a, b any) condition {
		oa, ob := asOperand(a), asOperand(b)
		return func(t *tuple.Tuple) (bool, error) {
			x, err := oa(t)
			if err != nil {
				return false, err
			}
			y, err := ob(t)
			if err != nil {
				return false, err
			}
			if op == "==" || op == "!=" {
				if equalValues(x, y) {
					return accept(0), nil
				}
				return accept(1), nil
			}
			return accept(order(x, y)), nil
		}
	}
}

// equalValues compares exactly first, then numerically so that an integer
// level matches a float literal. Strings never equal numbers or bools.
func equalValues(x, y any) bool {
	if tuple.Value(x).Equal(tuple.Value(y)) {
		return true
	}
	fx, okx := toFloat(x)
	fy, oky := toFloat(y)
	return okx && oky && fx == fy
}

// order compares numerically when both sides are numbers and lexically
// otherwise.
func order(x, y any) int {
	fx, okx := toFloat(x)
	fy, oky := toFloat(y)
	if okx && oky {
		switch {
		case fx < fy:
			return -1
		case fx > fy:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(x), fmt.Sprint(y))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
