package expr

import (
	"math"
	"strings"
)

// Eval evaluates a compiled expression tree against scope.
func Eval(n Node, scope Scope) (Value, error) {
	switch t := n.(type) {
	case *Literal:
		return t.Value, nil
	case *Ident:
		if isNamespace(t.Name) {
			return Value{}, errorf("namespace %q cannot be used as a value", t.Name)
		}
		v, ok := scope.Lookup(t.Name)
		if !ok {
			return Value{}, undefined(t.Name)
		}
		return v, nil
	case *Attr:
		id, ok := t.X.(*Ident)
		if !ok || !isNamespace(id.Name) {
			return Value{}, errorf("attribute %q: only params and globals support attribute access", t.Name)
		}
		v, ok := scope.LookupNamespace(id.Name, t.Name)
		if !ok {
			return Value{}, undefined(id.Name + "." + t.Name)
		}
		return v, nil
	case *Unary:
		return evalUnary(t, scope)
	case *Binary:
		return evalBinary(t, scope)
	case *Index:
		return evalIndex(t, scope)
	case *Slice:
		return evalSlice(t, scope)
	case *Call:
		args := make([]Value, len(t.Args))
		for i, a := range t.Args {
			v, err := Eval(a, scope)
			if err != nil {
				return Value{}, err
			}
			args[i] = v
		}
		return functions[t.Func].fn(args)
	case *Filter:
		x, err := Eval(t.X, scope)
		if err != nil {
			return Value{}, err
		}
		return filters[t.Name](x)
	}
	return Value{}, errorf("unsupported expression node %T", n)
}

func evalUnary(u *Unary, scope Scope) (Value, error) {
	x, err := Eval(u.X, scope)
	if err != nil {
		return Value{}, err
	}
	switch u.Op {
	case "not":
		return Bool(!x.Truthy()), nil
	case "+":
		if !x.isNumeric() {
			return Value{}, errorf("unary + on %s", x.Kind())
		}
		return x, nil
	case "-":
		switch x.Kind() {
		case KindInt:
			if x.i == math.MinInt64 {
				return Value{}, errorf("integer overflow in -(%d)", x.i)
			}
			return Int(-x.i), nil
		case KindFloat:
			return Float(-x.f), nil
		case KindBool:
			i, _ := x.AsInt()
			return Int(-i), nil
		}
		return Value{}, errorf("unary - on %s", x.Kind())
	}
	return Value{}, errorf("unknown unary operator %q", u.Op)
}

func evalBinary(b *Binary, scope Scope) (Value, error) {
	l, err := Eval(b.L, scope)
	if err != nil {
		return Value{}, err
	}
	switch b.Op {
	case "and":
		if !l.Truthy() {
			return l, nil
		}
		return Eval(b.R, scope)
	case "or":
		if l.Truthy() {
			return l, nil
		}
		return Eval(b.R, scope)
	}

	r, err := Eval(b.R, scope)
	if err != nil {
		return Value{}, err
	}
	switch b.Op {
	case "~":
		return String(l.String() + r.String()), nil
	case "==":
		return Bool(l.Equal(r)), nil
	case "!=":
		return Bool(!l.Equal(r)), nil
	case "<", "<=", ">", ">=":
		return compare(b.Op, l, r)
	case "in", "not in":
		hay, ok1 := r.AsString()
		needle, ok2 := l.AsString()
		if !ok1 || !ok2 {
			return Value{}, errorf("%q requires string operands, got %s and %s", b.Op, l.Kind(), r.Kind())
		}
		found := strings.Contains(hay, needle)
		if b.Op == "not in" {
			found = !found
		}
		return Bool(found), nil
	}
	return arith(b.Op, l, r)
}

func compare(op string, l, r Value) (Value, error) {
	var c int
	switch {
	case l.Kind() == KindString && r.Kind() == KindString:
		c = strings.Compare(l.s, r.s)
	case l.isNumeric() && r.isNumeric():
		if l.Kind() == KindInt && r.Kind() == KindInt {
			c = cmpInt(l.i, r.i)
		} else {
			a, _ := l.AsFloat()
			b, _ := r.AsFloat()
			c = cmpFloat(a, b)
		}
	default:
		return Value{}, errorf("cannot compare %s %s %s", l.Kind(), op, r.Kind())
	}
	switch op {
	case "<":
		return Bool(c < 0), nil
	case "<=":
		return Bool(c <= 0), nil
	case ">":
		return Bool(c > 0), nil
	default:
		return Bool(c >= 0), nil
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func arith(op string, l, r Value) (Value, error) {
	if l.Kind() == KindString || r.Kind() == KindString {
		return stringArith(op, l, r)
	}
	if !l.isNumeric() || !r.isNumeric() {
		return Value{}, errorf("unsupported operands for %s: %s and %s", op, l.Kind(), r.Kind())
	}

	if l.Kind() != KindFloat && r.Kind() != KindFloat && op != "/" {
		a, _ := l.AsInt()
		b, _ := r.AsInt()
		switch op {
		case "+":
			c := a + b
			if (c > a) != (b > 0) {
				return Value{}, errorf("integer overflow in %d + %d", a, b)
			}
			return Int(c), nil
		case "-":
			c := a - b
			if (c < a) != (b > 0) {
				return Value{}, errorf("integer overflow in %d - %d", a, b)
			}
			return Int(c), nil
		case "*":
			if a == 0 || b == 0 {
				return Int(0), nil
			}
			c := a * b
			if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
				return Value{}, errorf("integer overflow in %d * %d", a, b)
			}
			return Int(c), nil
		case "//", "%":
			if b == 0 {
				return Value{}, errorf("integer division by zero")
			}
			q, m := a/b, a%b
			if m != 0 && (m < 0) != (b < 0) {
				q--
				m += b
			}
			if op == "//" {
				return Int(q), nil
			}
			return Int(m), nil
		}
	}

	a, _ := l.AsFloat()
	b, _ := r.AsFloat()
	switch op {
	case "+":
		return Float(a + b), nil
	case "-":
		return Float(a - b), nil
	case "*":
		return Float(a * b), nil
	case "/", "//", "%":
		if b == 0 {
			return Value{}, errorf("division by zero")
		}
		switch op {
		case "/":
			return Float(a / b), nil
		case "//":
			return Float(math.Floor(a / b)), nil
		default:
			m := math.Mod(a, b)
			if m != 0 && (m < 0) != (b < 0) {
				m += b
			}
			return Float(m), nil
		}
	}
	return Value{}, errorf("unknown operator %q", op)
}

// maxRepeatLen caps the length of a string built by repetition.
const maxRepeatLen = 1 << 20

func stringArith(op string, l, r Value) (Value, error) {
	switch op {
	case "+":
		if l.Kind() == KindString && r.Kind() == KindString {
			return String(l.s + r.s), nil
		}
	case "*":
		s, n := l, r
		if s.Kind() != KindString {
			s, n = r, l
		}
		if n.Kind() == KindInt {
			if n.i <= 0 || s.s == "" {
				return String(""), nil
			}
			if n.i > int64(maxRepeatLen/len(s.s)) {
				return Value{}, errorf("string repeat count %d too large", n.i)
			}
			return String(strings.Repeat(s.s, int(n.i))), nil
		}
	}
	return Value{}, errorf("unsupported operands for %s: %s and %s", op, l.Kind(), r.Kind())
}

func evalIndex(ix *Index, scope Scope) (Value, error) {
	x, err := Eval(ix.X, scope)
	if err != nil {
		return Value{}, err
	}
	s, ok := x.AsString()
	if !ok {
		return Value{}, errorf("cannot index %s", x.Kind())
	}
	iv, err := Eval(ix.Index, scope)
	if err != nil {
		return Value{}, err
	}
	if iv.Kind() != KindInt {
		return Value{}, errorf("string index must be int, got %s", iv.Kind())
	}
	i := iv.i
	if i < 0 {
		i += int64(len(s))
	}
	if i < 0 || i >= int64(len(s)) {
		return Value{}, errorf("string index %d out of range for length %d", iv.i, len(s))
	}
	return String(s[i : i+1]), nil
}

func evalSlice(sl *Slice, scope Scope) (Value, error) {
	x, err := Eval(sl.X, scope)
	if err != nil {
		return Value{}, err
	}
	s, ok := x.AsString()
	if !ok {
		return Value{}, errorf("cannot slice %s", x.Kind())
	}
	n := int64(len(s))
	bound := func(node Node, def int64) (int64, error) {
		if node == nil {
			return def, nil
		}
		v, err := Eval(node, scope)
		if err != nil {
			return 0, err
		}
		if v.Kind() != KindInt {
			return 0, errorf("slice bound must be int, got %s", v.Kind())
		}
		i := v.i
		if i < 0 {
			i += n
		}
		return min(max(i, 0), n), nil
	}
	lo, err := bound(sl.Lo, 0)
	if err != nil {
		return Value{}, err
	}
	hi, err := bound(sl.Hi, n)
	if err != nil {
		return Value{}, err
	}
	if hi < lo {
		hi = lo
	}
	return String(s[lo:hi]), nil
}
