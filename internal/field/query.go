package field

import (
	"fmt"
	"strings"
)

// AmountFieldName is the column alias a Grouped query returns its count
// under.
const AmountFieldName = "amount"

// FilterKind distinguishes the four comparison operators a Filter may use.
type FilterKind int

const (
	FilterLike FilterKind = iota
	FilterNotLike
	FilterContains
	FilterIs
)

// Filter is one comparison clause in a Query's WHERE list.
type Filter struct {
	Kind  FilterKind
	Value ValueField
}

func Like(vf ValueField) Filter     { return Filter{Kind: FilterLike, Value: vf} }
func NotLike(vf ValueField) Filter  { return Filter{Kind: FilterNotLike, Value: vf} }
func Contains(vf ValueField) Filter { return Filter{Kind: FilterContains, Value: vf} }
func Is(vf ValueField) Filter       { return Filter{Kind: FilterIs, Value: vf} }

// QueryKind distinguishes the three Query variants.
type QueryKind int

const (
	QueryGrouped QueryKind = iota
	QueryNormal
	QueryOther
)

// String names the QueryKind, used as a metrics label.
func (k QueryKind) String() string {
	switch k {
	case QueryGrouped:
		return "grouped"
	case QueryNormal:
		return "normal"
	case QueryOther:
		return "other"
	default:
		return "unknown"
	}
}

// OtherQueryKind is the sole variant of OtherQuery today: enumerate the
// distinct values of a field.
type OtherQueryKind int

const (
	OtherAll OtherQueryKind = iota
)

// Range is a half-open [Start, End) row range, used by Normal queries for
// LIMIT/OFFSET.
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int { return r.End - r.Start }

// Query is the tagged union of the three query shapes the engine and link
// exchange. Exactly one of the variant-specific field groups is populated,
// selected by Kind.
type Query struct {
	Kind QueryKind

	// Grouped
	GroupBy Field

	// Normal
	Fields []Field
	Range  Range

	// Other
	OtherKind  OtherQueryKind
	OtherField Field

	// Shared by Grouped and Normal
	Filters []Filter
}

// NewGrouped builds a Grouped query.
func NewGrouped(filters []Filter, groupBy Field) Query {
	return Query{Kind: QueryGrouped, Filters: filters, GroupBy: groupBy}
}

// NewNormal builds a Normal query.
func NewNormal(fields []Field, filters []Filter, r Range) Query {
	return Query{Kind: QueryNormal, Fields: fields, Filters: filters, Range: r}
}

// NewOtherAll builds an Other{All(field)} query.
func NewOtherAll(f Field) Query {
	return Query{Kind: QueryOther, OtherKind: OtherAll, OtherField: f}
}

// ToSQL compiles q into a parameterized SQL statement against the `emails`
// table. Field identifiers come exclusively from Field.String(), which is
// a fixed mapping from a closed enum — never from user input — so this
// cannot be used to inject arbitrary SQL (testable property #8).
func (q Query) ToSQL() (string, []any) {
	var where strings.Builder
	var args []any
	for i, f := range q.Filters {
		if i > 0 {
			where.WriteString(" AND ")
		}
		col := f.Value.Field().String()
		switch f.Kind {
		case FilterLike:
			where.WriteString(col + " LIKE ?")
			args = append(args, f.Value.Value().Any())
		case FilterNotLike:
			where.WriteString(col + " NOT LIKE ?")
			args = append(args, f.Value.Value().Any())
		case FilterContains:
			where.WriteString(col + " LIKE ?")
			args = append(args, "%"+strings.ToLower(f.Value.AsString())+"%")
		case FilterIs:
			where.WriteString(col + " = ?")
			args = append(args, f.Value.Value().Any())
		}
	}

	whereClause := ""
	if where.Len() > 0 {
		whereClause = " WHERE " + where.String()
	}

	switch q.Kind {
	case QueryGrouped:
		sql := fmt.Sprintf("SELECT count(path) AS %s, %s FROM emails%s GROUP BY %s",
			AmountFieldName, q.GroupBy.String(), whereClause, q.GroupBy.String())
		return sql, args
	case QueryNormal:
		names := make([]string, len(q.Fields))
		for i, f := range q.Fields {
			names[i] = f.String()
		}
		sql := fmt.Sprintf("SELECT %s FROM emails%s LIMIT %d OFFSET %d",
			strings.Join(names, ", "), whereClause, q.Range.Len(), q.Range.Start)
		return sql, args
	case QueryOther:
		col := q.OtherField.String()
		sql := fmt.Sprintf("SELECT %s FROM emails GROUP BY %s", col, col)
		return sql, nil
	default:
		return "", nil
	}
}

// QueryResultKind distinguishes the three QueryResult shapes a row
// materializes into.
type QueryResultKind int

const (
	ResultGrouped QueryResultKind = iota
	ResultNormal
	ResultOther
)

// QueryResult is one materialized row of a Query's result set.
type QueryResult struct {
	Kind QueryResultKind

	// Grouped
	Count int
	Value ValueField

	// Normal
	Row map[Field]ValueField

	// Other
	Other ValueField
}
