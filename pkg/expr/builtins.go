package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"mercator-hq/readbreak/pkg/match"
)

type builtin struct {
	minArgs int
	maxArgs int // -1 means variadic
	fn      func(args []Value) (Value, error)
}

func (b builtin) arity() string {
	switch {
	case b.maxArgs < 0:
		return fmt.Sprintf("at least %d arguments", b.minArgs)
	case b.minArgs == b.maxArgs && b.minArgs == 1:
		return "exactly 1 argument"
	case b.minArgs == b.maxArgs:
		return fmt.Sprintf("exactly %d arguments", b.minArgs)
	}
	return fmt.Sprintf("%d to %d arguments", b.minArgs, b.maxArgs)
}

var filters map[string]func(Value) (Value, error)

var functions map[string]builtin

func init() {
	filters = map[string]func(Value) (Value, error){
		"length": length,
		"int":    toInt,
		"float":  toFloat,
		"string": func(v Value) (Value, error) { return String(v.String()), nil },
		"bool":   func(v Value) (Value, error) { return Bool(v.Truthy()), nil },
		"upper":  stringFilter("upper", strings.ToUpper),
		"lower":  stringFilter("lower", strings.ToLower),
		"rc":     stringFilter("rc", match.ReverseComplement),
		"abs":    abs,
		"round":  round,
	}

	unary := func(f func(Value) (Value, error)) builtin {
		return builtin{minArgs: 1, maxArgs: 1, fn: func(a []Value) (Value, error) { return f(a[0]) }}
	}
	functions = map[string]builtin{
		"len":   unary(length),
		"int":   unary(toInt),
		"float": unary(toFloat),
		"str":   unary(filters["string"]),
		"abs":   unary(abs),
		"round": unary(round),
		"rc":    unary(filters["rc"]),
		"min":   {minArgs: 1, maxArgs: -1, fn: func(a []Value) (Value, error) { return extreme("min", a, -1) }},
		"max":   {minArgs: 1, maxArgs: -1, fn: func(a []Value) (Value, error) { return extreme("max", a, 1) }},
	}
}

func length(v Value) (Value, error) {
	s, ok := v.AsString()
	if !ok {
		return Value{}, errorf("length of %s", v.Kind())
	}
	return Int(int64(len(s))), nil
}

func toInt(v Value) (Value, error) {
	switch v.Kind() {
	case KindInt:
		return v, nil
	case KindBool:
		i, _ := v.AsInt()
		return Int(i), nil
	case KindFloat:
		return Int(int64(v.f)), nil
	case KindString:
		s := strings.TrimSpace(v.s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Int(int64(f)), nil
		}
		return Value{}, errorf("cannot convert %q to int", v.s)
	}
	return Value{}, errorf("cannot convert %s to int", v.Kind())
}

func toFloat(v Value) (Value, error) {
	if f, ok := v.AsFloat(); ok {
		return Float(f), nil
	}
	if s, ok := v.AsString(); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return Float(f), nil
		}
		return Value{}, errorf("cannot convert %q to float", s)
	}
	return Value{}, errorf("cannot convert %s to float", v.Kind())
}

func abs(v Value) (Value, error) {
	switch v.Kind() {
	case KindInt:
		if v.i < 0 {
			return Int(-v.i), nil
		}
		return v, nil
	case KindFloat:
		return Float(math.Abs(v.f)), nil
	case KindBool:
		i, _ := v.AsInt()
		return Int(i), nil
	}
	return Value{}, errorf("abs of %s", v.Kind())
}

func round(v Value) (Value, error) {
	switch v.Kind() {
	case KindInt:
		return v, nil
	case KindFloat:
		return Float(math.RoundToEven(v.f)), nil
	}
	return Value{}, errorf("round of %s", v.Kind())
}

func stringFilter(name string, f func(string) string) func(Value) (Value, error) {
	return func(v Value) (Value, error) {
		s, ok := v.AsString()
		if !ok {
			return Value{}, errorf("%s of %s", name, v.Kind())
		}
		return String(f(s)), nil
	}
}

func extreme(name string, args []Value, sign int) (Value, error) {
	best := args[0]
	for _, v := range args[1:] {
		c, err := compare(">", v, best)
		if err != nil {
			return Value{}, errorf("%s: %v", name, err)
		}
		gt, _ := c.AsBool()
		lt := !gt && !v.Equal(best)
		if (sign > 0 && gt) || (sign < 0 && lt) {
			best = v
		}
	}
	return best, nil
}
