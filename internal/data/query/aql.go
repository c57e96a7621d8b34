// Package query parses the small anchor query language used by the
// -query flag: SELECT anchors [WHERE cond AND cond ...], with string
// equality, CONTAINS, and numeric comparisons over anchor fields.
package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	aqlSelectRE       = regexp.MustCompile(`(?i)^\s*SELECT\s+anchors(?:\s+WHERE\s+(.+))?\s*$`)
	aqlAndSplitRE     = regexp.MustCompile(`(?i)\s+AND\s+`)
	aqlNumericCondRE  = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s*(>=|<=|!=|=|>|<)\s*(-?[0-9]+)\s*$`)
	aqlContainsCondRE = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s+CONTAINS\s+['"]([^'"]+)['"]\s*$`)
	aqlStringCondRE   = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s*(=|!=)\s*['"]([^'"]+)['"]\s*$`)
)

// columns maps query field names to anchor table columns. Only listed
// fields are queryable; everything else is rejected at parse time.
var columns = map[string]struct {
	column  string
	numeric bool
}{
	"fqn":    {"fqn", false},
	"kind":   {"kind", false},
	"path":   {"path", false},
	"text":   {"text", false},
	"start": {"start_byte", true},
	"end":   {"end_byte", true},
}

type Query struct {
	Conditions []Condition
}

type Condition struct {
	Field  string
	Op     string
	IntVal int
	StrVal string
	IsInt  bool
}

func Parse(raw string) (Query, error) {
	matches := aqlSelectRE.FindStringSubmatch(strings.TrimSpace(raw))
	if len(matches) == 0 {
		return Query{}, fmt.Errorf("invalid query: expected SELECT anchors [WHERE ...]")
	}

	var q Query
	where := strings.TrimSpace(matches[1])
	if where == "" {
		return q, nil
	}

	parts := aqlAndSplitRE.Split(where, -1)
	q.Conditions = make([]Condition, 0, len(parts))
	for _, part := range parts {
		condition, err := parseCondition(part)
		if err != nil {
			return Query{}, err
		}
		q.Conditions = append(q.Conditions, condition)
	}
	return q, nil
}

func parseCondition(raw string) (Condition, error) {
	if match := aqlNumericCondRE.FindStringSubmatch(raw); len(match) == 4 {
		value, err := strconv.Atoi(strings.TrimSpace(match[3]))
		if err != nil {
			return Condition{}, fmt.Errorf("invalid numeric value %q: %w", match[3], err)
		}
		return checkField(Condition{
			Field:  strings.ToLower(strings.TrimSpace(match[1])),
			Op:     strings.TrimSpace(match[2]),
			IntVal: value,
			IsInt:  true,
		})
	}

	if match := aqlContainsCondRE.FindStringSubmatch(raw); len(match) == 3 {
		return checkField(Condition{
			Field:  strings.ToLower(strings.TrimSpace(match[1])),
			Op:     "contains",
			StrVal: strings.TrimSpace(match[2]),
		})
	}

	if match := aqlStringCondRE.FindStringSubmatch(raw); len(match) == 4 {
		return checkField(Condition{
			Field:  strings.ToLower(strings.TrimSpace(match[1])),
			Op:     strings.TrimSpace(match[2]),
			StrVal: strings.TrimSpace(match[3]),
		})
	}

	return Condition{}, fmt.Errorf("invalid condition %q", strings.TrimSpace(raw))
}

func checkField(c Condition) (Condition, error) {
	meta, ok := columns[c.Field]
	if !ok {
		return Condition{}, fmt.Errorf("unknown field %q", c.Field)
	}
	if c.IsInt && !meta.numeric {
		return Condition{}, fmt.Errorf("field %q takes a quoted string", c.Field)
	}
	if !c.IsInt && meta.numeric {
		return Condition{}, fmt.Errorf("field %q takes a number", c.Field)
	}
	return c, nil
}

// SQL renders the conditions as a parameterized WHERE fragment over
// the anchors table. An empty query selects everything.
func (q Query) SQL() (string, []any) {
	if len(q.Conditions) == 0 {
		return "", nil
	}

	clauses := make([]string, 0, len(q.Conditions))
	args := make([]any, 0, len(q.Conditions))
	for _, c := range q.Conditions {
		column := columns[c.Field].column
		switch {
		case c.IsInt:
			clauses = append(clauses, fmt.Sprintf("%s %s ?", column, c.Op))
			args = append(args, c.IntVal)
		case c.Op == "contains":
			clauses = append(clauses, fmt.Sprintf(`%s LIKE ? ESCAPE '\'`, column))
			args = append(args, "%"+escapeLike(c.StrVal)+"%")
		default:
			clauses = append(clauses, fmt.Sprintf("%s %s ?", column, c.Op))
			args = append(args, c.StrVal)
		}
	}
	return strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
