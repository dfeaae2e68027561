package storage

// Op is a condition operator.
type Op int

const (
	OpEq Op = iota
	OpGte
	OpLte
	OpIn
)

// Cond is one predicate against a single column. Conditions on a query are
// combined with AND, in order.
type Cond struct {
	Column string
	Op     Op
	Values []any
}

// Eq matches rows whose column equals v.
func Eq(column string, v any) Cond {
	return Cond{Column: column, Op: OpEq, Values: []any{v}}
}

// Gte matches rows whose column is greater than or equal to v.
func Gte(column string, v any) Cond {
	return Cond{Column: column, Op: OpGte, Values: []any{v}}
}

// Lte matches rows whose column is less than or equal to v.
func Lte(column string, v any) Cond {
	return Cond{Column: column, Op: OpLte, Values: []any{v}}
}

// In matches rows whose column equals any of vs. An empty vs matches nothing.
func In(column string, vs ...any) Cond {
	return Cond{Column: column, Op: OpIn, Values: vs}
}
