package domain

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ParseSelect parses a Tally-dialect SELECT statement into a typed AST.
// Anything that fails to parse is rejected outright: the parser accepts the
// narrow, known-shape read-only dialect and nothing else, closing the bypass
// classes that substring heuristics cannot.
func ParseSelect(query string) (*SelectStmt, error) {
	toks, err := lex(query)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}

	stmt, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, fmt.Errorf("unexpected trailing input at offset %d: %q", p.cur().pos, p.cur().text)
	}
	return stmt, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) acceptKeyword(kw string) bool {
	if p.cur().isKeyword(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return fmt.Errorf("expected %s at offset %d, got %q", kw, p.cur().pos, p.cur().text)
	}
	return nil
}

func (p *parser) acceptOp(op string) bool {
	if p.cur().kind == tokOp && p.cur().text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectOp(op string) error {
	if !p.acceptOp(op) {
		return fmt.Errorf("expected %q at offset %d, got %q", op, p.cur().pos, p.cur().text)
	}
	return nil
}

func (p *parser) parseSelect() (*SelectStmt, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	stmt := &SelectStmt{}

	if p.acceptKeyword("TOP") {
		n, err := p.parseInt()
		if err != nil {
			return nil, fmt.Errorf("TOP: %w", err)
		}
		stmt.Top = n
	}

	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		stmt.Items = append(stmt.Items, item)
		if !p.acceptOp(",") {
			break
		}
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	if p.cur().kind != tokIdent {
		return nil, fmt.Errorf("expected table name at offset %d", p.cur().pos)
	}
	stmt.Table = p.next().text

	if p.acceptKeyword("WHERE") {
		where, err := p.parseOr()
		if err != nil {
			return nil, fmt.Errorf("WHERE: %w", err)
		}
		stmt.Where = where
	}

	if p.acceptKeyword("GROUP") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseAdd()
			if err != nil {
				return nil, fmt.Errorf("GROUP BY: %w", err)
			}
			stmt.GroupBy = append(stmt.GroupBy, e)
			if !p.acceptOp(",") {
				break
			}
		}
	}

	if p.acceptKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseAdd()
			if err != nil {
				return nil, fmt.Errorf("ORDER BY: %w", err)
			}
			item := OrderItem{Expr: e}
			if p.acceptKeyword("DESC") {
				item.Desc = true
			} else {
				p.acceptKeyword("ASC")
			}
			stmt.OrderBy = append(stmt.OrderBy, item)
			if !p.acceptOp(",") {
				break
			}
		}
	}

	if p.acceptKeyword("LIMIT") {
		n, err := p.parseInt()
		if err != nil {
			return nil, fmt.Errorf("LIMIT: %w", err)
		}
		stmt.Limit = n
	}

	return stmt, nil
}

func (p *parser) parseSelectItem() (SelectItem, error) {
	if p.acceptOp("*") {
		return SelectItem{Expr: &Star{}}, nil
	}
	e, err := p.parseAdd()
	if err != nil {
		return SelectItem{}, err
	}
	item := SelectItem{Expr: e}
	if p.acceptKeyword("AS") {
		if p.cur().kind != tokIdent {
			return SelectItem{}, fmt.Errorf("expected alias at offset %d", p.cur().pos)
		}
		item.Alias = p.next().text
	}
	return item, nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.acceptKeyword("NOT") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "NOT", Operand: operand}, nil
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() (Expr, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}

	switch {
	case p.cur().kind == tokOp && isComparisonOp(p.cur().text):
		op := p.next().text
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: op, Left: left, Right: right}, nil

	case p.cur().isKeyword("IS"):
		p.pos++
		op := "ISNULL"
		if p.acceptKeyword("NOT") {
			op = "ISNOTNULL"
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op, Operand: left}, nil

	case p.cur().isKeyword("IN"):
		p.pos++
		if err := p.expectOp("("); err != nil {
			return nil, err
		}
		in := &InExpr{Operand: left}
		for {
			e, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			in.List = append(in.List, e)
			if !p.acceptOp(",") {
				break
			}
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return in, nil

	case p.cur().isKeyword("LIKE"):
		p.pos++
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: "LIKE", Left: left, Right: right}, nil

	case p.cur().isKeyword("BETWEEN"):
		p.pos++
		low, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		high, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		rng := &BinaryExpr{Op: "AND",
			Left:  &BinaryExpr{Op: ">=", Left: left, Right: low},
			Right: &BinaryExpr{Op: "<=", Left: left, Right: high},
		}
		return rng, nil
	}

	return left, nil
}

func isComparisonOp(op string) bool {
	switch op {
	case "=", "<>", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (p *parser) parseAdd() (Expr, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokOp && (p.cur().text == "+" || p.cur().text == "-") {
		op := p.next().text
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMul() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokOp && (p.cur().text == "*" || p.cur().text == "/") {
		op := p.next().text
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch {
	case t.kind == tokField:
		p.pos++
		return &FieldRef{Name: t.text}, nil

	case t.kind == tokNumber:
		p.pos++
		return &Literal{Value: t.text}, nil

	case t.kind == tokString:
		p.pos++
		return &Literal{Value: t.text, IsString: true}, nil

	case t.kind == tokOp && t.text == "?":
		p.pos++
		return &Placeholder{}, nil

	case t.kind == tokOp && t.text == "(":
		p.pos++
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return e, nil

	case t.isKeyword("CASE"):
		return p.parseCase()

	case t.kind == tokIdent:
		p.pos++
		if p.acceptOp("(") {
			call := &FuncCall{Name: t.text}
			if p.acceptOp("*") {
				call.Star = true
			} else if !p.acceptOp(")") {
				for {
					arg, err := p.parseOr()
					if err != nil {
						return nil, err
					}
					call.Args = append(call.Args, arg)
					if !p.acceptOp(",") {
						break
					}
				}
			}
			if call.Star || len(call.Args) > 0 {
				if err := p.expectOp(")"); err != nil {
					return nil, err
				}
			}
			return call, nil
		}
		return &Ident{Name: t.text}, nil
	}

	return nil, fmt.Errorf("unexpected token %q at offset %d", t.text, t.pos)
}

func (p *parser) parseCase() (Expr, error) {
	if err := p.expectKeyword("CASE"); err != nil {
		return nil, err
	}
	ce := &CaseExpr{}
	for p.acceptKeyword("WHEN") {
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("THEN"); err != nil {
			return nil, err
		}
		result, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		ce.Whens = append(ce.Whens, CaseWhen{Cond: cond, Result: result})
	}
	if len(ce.Whens) == 0 {
		return nil, fmt.Errorf("CASE without WHEN at offset %d", p.cur().pos)
	}
	if p.acceptKeyword("ELSE") {
		e, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		ce.Else = e
	}
	if err := p.expectKeyword("END"); err != nil {
		return nil, err
	}
	return ce, nil
}

func (p *parser) parseInt() (int, error) {
	if p.cur().kind != tokNumber {
		return 0, fmt.Errorf("expected number at offset %d, got %q", p.cur().pos, p.cur().text)
	}
	n, err := strconv.Atoi(p.next().text)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid count %q", p.toks[p.pos-1].text)
	}
	return n, nil
}

// DialectValidator is the parser-backed gate: the query must parse as a
// single dialect SELECT, name an allow-listed table, call only allow-listed
// functions, and reference at least one $field. It runs after the heuristic
// pre-filter, never instead of it.
type DialectValidator struct {
	logger *slog.Logger
}

func NewDialectValidator(logger *slog.Logger) *DialectValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &DialectValidator{logger: logger}
}

func (d *DialectValidator) Validate(query string) error {
	stmt, err := ParseSelect(query)
	if err != nil {
		return d.reject(&Violation{Kind: KindMalformedInput, Detail: fmt.Sprintf("parse: %v", err)})
	}

	if !AllowedTables[stmt.Table] {
		return d.reject(&Violation{Kind: KindUnknownTable, Detail: fmt.Sprintf("table %q", stmt.Table)})
	}

	var verr *Violation
	fields := 0
	stmt.Walk(func(e Expr) {
		if verr != nil {
			return
		}
		switch n := e.(type) {
		case *FieldRef:
			fields++
		case *FuncCall:
			if !allowedFunctions[strings.ToUpper(n.Name)] {
				verr = &Violation{Kind: KindFunctionNotAllowed, Detail: fmt.Sprintf("function %q", n.Name)}
			}
		}
	})
	if verr != nil {
		return d.reject(verr)
	}
	if fields == 0 {
		return d.reject(&Violation{Kind: KindMissingFieldTokens, Detail: "no $Field references in parsed statement"})
	}

	d.logger.Debug("query passed dialect validation", slog.String("table", stmt.Table))
	return nil
}

func (d *DialectValidator) reject(v *Violation) error {
	d.logger.Warn("query rejected",
		slog.String("violation", string(v.Kind)),
		slog.String("detail", v.Detail),
	)
	return v
}
