// Package query turns product listing parameters into a gorm query plan:
// keyword search, field filters and fixed-size pagination.
package query

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/apperr"
)

// PageSize is the number of products returned per page.
const PageSize = 8

// MaxPage is the largest page whose offset still fits in an int.
const MaxPage = math.MaxInt / PageSize

type Op string

const (
	OpEq  Op = "eq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

var sqlOps = map[Op]string{
	OpEq:  "=",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

type kind int

const (
	kindString kind = iota
	kindNumber
)

type field struct {
	column string
	kind   kind
}

var filterable = map[string]field{
	"category": {column: "category", kind: kindString},
	"price":    {column: "price", kind: kindNumber},
	"ratings":  {column: "ratings", kind: kindNumber},
	"stock":    {column: "stock", kind: kindNumber},
}

var reserved = map[string]struct{}{
	"keyword": {},
	"page":    {},
	"limit":   {},
}

var keyPattern = regexp.MustCompile(`^([a-z_]+)(?:\[([a-z]+)\])?$`)

type Condition struct {
	Field string
	Op    Op
	Value any
}

type Products struct {
	Keyword    string
	Conditions []Condition
	Page       int
}

// Parse reads keyword, filters and page from the listing query string.
// A missing or invalid page falls back to the first one.
func Parse(values url.Values) (Products, error) {
	q := Products{
		Keyword: strings.TrimSpace(values.Get("keyword")),
		Page:    parsePage(values.Get("page")),
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, ok := reserved[key]; ok {
			continue
		}
		m := keyPattern.FindStringSubmatch(key)
		if m == nil {
			return Products{}, fmt.Errorf("%w: malformed filter %q", apperr.ErrValidation, key)
		}
		name, op := m[1], Op(m[2])
		if op == "" {
			op = OpEq
		}

		f, ok := filterable[name]
		if !ok {
			return Products{}, fmt.Errorf("%w: cannot filter by %q", apperr.ErrValidation, name)
		}
		if _, ok := sqlOps[op]; !ok {
			return Products{}, fmt.Errorf("%w: unknown operator %q", apperr.ErrValidation, op)
		}
		if f.kind == kindString && op != OpEq {
			return Products{}, fmt.Errorf("%w: %q supports equality only", apperr.ErrValidation, name)
		}

		for _, raw := range values[key] {
			cond := Condition{Field: name, Op: op}
			switch f.kind {
			case kindNumber:
				v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
				if err != nil {
					return Products{}, fmt.Errorf("%w: %s must be a number", apperr.ErrValidation, key)
				}
				cond.Value = v
			default:
				cond.Value = raw
			}
			q.Conditions = append(q.Conditions, cond)
		}
	}

	return q, nil
}

func parsePage(s string) int {
	page, err := strconv.Atoi(s)
	if err != nil || page < 1 {
		return 1
	}
	return min(page, MaxPage)
}

// Calculate converts a 1-based page into offset and limit.
func Calculate(page, size int) (offset int, limit int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = PageSize
	}
	page = min(page, math.MaxInt/size)
	return (page - 1) * size, size
}

// Filter narrows db to products matching the keyword and every condition.
func (q Products) Filter(db *gorm.DB) *gorm.DB {
	if q.Keyword != "" {
		db = db.Where(`LOWER(name) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(q.Keyword))+"%")
	}
	for _, c := range q.Conditions {
		f := filterable[c.Field]
		db = db.Where(fmt.Sprintf("%s %s ?", f.column, sqlOps[c.Op]), c.Value)
	}
	return db
}

// Paginate applies a stable order and the page window. It must run after Filter.
func (q Products) Paginate(db *gorm.DB) *gorm.DB {
	offset, limit := Calculate(q.Page, PageSize)
	return db.Order("created_at ASC").Order("id ASC").Offset(offset).Limit(limit)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
