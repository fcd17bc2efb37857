package domain

// Typed AST for the Tally $field SELECT dialect. Produced by ParseSelect and
// checked by DialectValidator's semantic passes.

// SelectStmt is a single read-only selection over one logical table.
type SelectStmt struct {
	Top     int // 0 = no TOP clause
	Items   []SelectItem
	Table   string
	Where   Expr
	GroupBy []Expr
	OrderBy []OrderItem
	Limit   int // 0 = no LIMIT clause
}

// SelectItem is one projected column, optionally aliased with AS.
type SelectItem struct {
	Expr  Expr
	Alias string
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// Expr is a node in the predicate/projection tree.
type Expr interface{ expr() }

// FieldRef is a $-sigil column reference ($Name, $ClosingBalance).
type FieldRef struct {
	Name string // without the sigil
}

// Ident is a bare identifier, legal only where the dialect resolves it
// against an alias (ORDER BY total_value DESC).
type Ident struct {
	Name string
}

// FuncCall is an aggregate or scalar call. Star marks COUNT(*).
type FuncCall struct {
	Name string
	Args []Expr
	Star bool
}

// Literal is a quoted string or numeric constant.
type Literal struct {
	Value    string
	IsString bool
}

// Placeholder is a ? parameter marker bound at execution time.
type Placeholder struct{}

// Star is the bare * projection.
type Star struct{}

// BinaryExpr covers comparison, logical, and arithmetic operators. Op is
// stored upper-cased for word operators (AND, OR, IN, LIKE).
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// UnaryExpr covers NOT and IS [NOT] NULL (Op "NOT", "ISNULL", "ISNOTNULL").
type UnaryExpr struct {
	Op      string
	Operand Expr
}

// InExpr is <expr> IN (<list>).
type InExpr struct {
	Operand Expr
	List    []Expr
}

// CaseExpr is CASE WHEN ... THEN ... [ELSE ...] END.
type CaseExpr struct {
	Whens []CaseWhen
	Else  Expr
}

// CaseWhen is one WHEN <cond> THEN <result> arm.
type CaseWhen struct {
	Cond   Expr
	Result Expr
}

func (*FieldRef) expr()    {}
func (*Ident) expr()       {}
func (*FuncCall) expr()    {}
func (*Literal) expr()     {}
func (*Placeholder) expr() {}
func (*Star) expr()        {}
func (*BinaryExpr) expr()  {}
func (*UnaryExpr) expr()   {}
func (*InExpr) expr()      {}
func (*CaseExpr) expr()    {}

// walkExpr visits e and every sub-expression depth-first.
func walkExpr(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case *FuncCall:
		for _, a := range n.Args {
			walkExpr(a, visit)
		}
	case *BinaryExpr:
		walkExpr(n.Left, visit)
		walkExpr(n.Right, visit)
	case *UnaryExpr:
		walkExpr(n.Operand, visit)
	case *InExpr:
		walkExpr(n.Operand, visit)
		for _, item := range n.List {
			walkExpr(item, visit)
		}
	case *CaseExpr:
		for _, w := range n.Whens {
			walkExpr(w.Cond, visit)
			walkExpr(w.Result, visit)
		}
		walkExpr(n.Else, visit)
	}
}

// Walk visits every expression in the statement: projections, predicate,
// grouping, and ordering keys.
func (s *SelectStmt) Walk(visit func(Expr)) {
	for _, item := range s.Items {
		walkExpr(item.Expr, visit)
	}
	walkExpr(s.Where, visit)
	for _, g := range s.GroupBy {
		walkExpr(g, visit)
	}
	for _, o := range s.OrderBy {
		walkExpr(o.Expr, visit)
	}
}
