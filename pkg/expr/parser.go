package expr

import (
	"fmt"
	"strconv"
)

type parser struct {
	toks []token
	pos  int
}

// ParseExpr compiles a single expression (the text between {{ and }}).
func ParseExpr(src string) (Node, error) {
	n, err := parseExpr(src, 0)
	if err != nil {
		if se, ok := err.(*SyntaxError); ok {
			se.Source = src
		}
		return nil, err
	}
	return n, nil
}

func parseExpr(src string, base int) (Node, error) {
	toks, err := tokenize(src, base)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, &SyntaxError{Pos: base, Message: "empty expression"}
	}
	n, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %s", t)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(ops ...string) bool {
	t := p.peek()
	if t.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if t.text == op {
			return true
		}
	}
	return false
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == kw
}

func (p *parser) expectOp(op string) error {
	if !p.isOp(op) {
		return p.errorf(p.peek(), "expected %q, found %s", op, p.peek())
	}
	p.advance()
	return nil
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Pos: t.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) or() (Node, error) {
	l, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") || p.isOp("||") {
		p.advance()
		r, err := p.and()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: "or", L: l, R: r}
	}
	return l, nil
}

func (p *parser) and() (Node, error) {
	l, err := p.not()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") || p.isOp("&&") {
		p.advance()
		r, err := p.not()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: "and", L: l, R: r}
	}
	return l, nil
}

func (p *parser) not() (Node, error) {
	if p.isKeyword("not") || p.isOp("!") {
		p.advance()
		x, err := p.not()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "not", X: x}, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (Node, error) {
	l, err := p.concat()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.isOp("==", "!=", "<", "<=", ">", ">="):
			op = p.advance().text
		case p.isKeyword("in"):
			p.advance()
			op = "in"
		case p.isKeyword("not") && p.pos+1 < len(p.toks) &&
			p.toks[p.pos+1].kind == tokIdent && p.toks[p.pos+1].text == "in":
			p.pos += 2
			op = "not in"
		default:
			return l, nil
		}
		r, err := p.concat()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: op, L: l, R: r}
	}
}

func (p *parser) concat() (Node, error) {
	l, err := p.additive()
	if err != nil {
		return nil, err
	}
	for p.isOp("~") {
		p.advance()
		r, err := p.additive()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: "~", L: l, R: r}
	}
	return l, nil
}

func (p *parser) additive() (Node, error) {
	l, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOp("+", "-") {
		op := p.advance().text
		r, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: op, L: l, R: r}
	}
	return l, nil
}

func (p *parser) multiplicative() (Node, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*", "/", "//", "%") {
		op := p.advance().text
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: op, L: l, R: r}
	}
	return l, nil
}

func (p *parser) unary() (Node, error) {
	if p.isOp("-", "+") {
		op := p.advance().text
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, X: x}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Node, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("."):
			p.advance()
			t := p.advance()
			if t.kind != tokIdent {
				return nil, p.errorf(t, "expected attribute name, found %s", t)
			}
			x = &Attr{X: x, Name: t.text}
		case p.isOp("["):
			p.advance()
			x, err = p.subscript(x)
			if err != nil {
				return nil, err
			}
		case p.isOp("|"):
			p.advance()
			t := p.advance()
			if t.kind != tokIdent {
				return nil, p.errorf(t, "expected filter name, found %s", t)
			}
			if _, ok := filters[t.text]; !ok {
				return nil, p.errorf(t, "unknown filter %q", t.text)
			}
			x = &Filter{X: x, Name: t.text}
		default:
			return x, nil
		}
	}
}

func (p *parser) subscript(x Node) (Node, error) {
	var lo, hi Node
	var err error
	if !p.isOp(":") {
		lo, err = p.or()
		if err != nil {
			return nil, err
		}
		if p.isOp("]") {
			p.advance()
			return &Index{X: x, Index: lo}, nil
		}
	}
	if err := p.expectOp(":"); err != nil {
		return nil, err
	}
	if !p.isOp("]") {
		hi, err = p.or()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return &Slice{X: x, Lo: lo, Hi: hi}, nil
}

func (p *parser) primary() (Node, error) {
	t := p.advance()
	switch t.kind {
	case tokInt:
		i, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid integer %s", t)
		}
		return &Literal{Value: Int(i)}, nil
	case tokFloat:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid number %s", t)
		}
		return &Literal{Value: Float(f)}, nil
	case tokString:
		return &Literal{Value: String(t.text)}, nil
	case tokIdent:
		switch t.text {
		case "true", "True":
			return &Literal{Value: Bool(true)}, nil
		case "false", "False":
			return &Literal{Value: Bool(false)}, nil
		case "and", "or", "not", "in":
			return nil, p.errorf(t, "unexpected keyword %q", t.text)
		}
		if p.isOp("(") {
			return p.call(t)
		}
		return &Ident{Name: t.text}, nil
	case tokOp:
		if t.text == "(" {
			x, err := p.or()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return x, nil
		}
	}
	return nil, p.errorf(t, "unexpected %s", t)
}

func (p *parser) call(name token) (Node, error) {
	fn, ok := functions[name.text]
	if !ok {
		return nil, p.errorf(name, "unknown function %q", name.text)
	}
	p.advance()
	var args []Node
	for !p.isOp(")") {
		a, err := p.or()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if !p.isOp(",") {
			break
		}
		p.advance()
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, p.errorf(name, "%s() takes %s, got %d", name.text, fn.arity(), len(args))
	}
	return &Call{Func: name.text, Args: args}, nil
}
