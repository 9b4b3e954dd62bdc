package store

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	orderByRanking = "ranking"
	orderByPrice   = "price"
	orderByRating  = "rating"
)

// validOrderBy maps allowed OrderBy values to their SQL column expressions.
var validOrderBy = map[string]string{
	orderByRanking: "ranking ASC",
	orderByPrice:   "price ASC, ranking ASC",
	orderByRating:  "rating DESC NULLS LAST, ranking ASC",
}

const defaultOrderBy = "ranking ASC"

const baseListingsSelect = `SELECT ranking, title, price, rating, link, source FROM listings`

const countListingsSelect = "SELECT COUNT(*) FROM listings"

// placeholder renders the n-th (1-based) bind parameter for a SQL dialect.
type placeholder func(n int) string

func dollar(n int) string { return "$" + strconv.Itoa(n) }

func question(int) string { return "?" }

// ToSQL builds the PostgreSQL WHERE clause, ORDER BY, LIMIT, and OFFSET for
// a listing query. It returns two SQL strings (one for the data query, one
// for the count query) and the positional parameters.
func (q *ListingQuery) ToSQL() (dataSQL, countSQL string, args []any) {
	return q.build(dollar)
}

func (q *ListingQuery) build(ph placeholder) (dataSQL, countSQL string, args []any) {
	var conditions []string
	paramIdx := 1

	add := func(expr string, v any) {
		conditions = append(conditions, fmt.Sprintf(expr, ph(paramIdx)))
		args = append(args, v)
		paramIdx++
	}

	if q.MinPrice != nil {
		add("price >= %s", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		add("price <= %s", *q.MaxPrice)
	}
	if q.MinRating != nil {
		add("rating >= %s", *q.MinRating)
	}
	if q.Source != nil {
		add("source = %s", *q.Source)
	}

	var whereClause string
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	orderClause := defaultOrderBy
	if q.OrderBy != "" {
		if col, ok := validOrderBy[q.OrderBy]; ok {
			orderClause = col
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset := max(q.Offset, 0)

	dataSQL = fmt.Sprintf(
		"%s%s ORDER BY %s LIMIT %d OFFSET %d",
		baseListingsSelect, whereClause, orderClause, limit, offset,
	)

	countSQL = countListingsSelect + whereClause

	return dataSQL, countSQL, args
}
