package db

import (
	"database/sql"
	"strconv"
	"strings"
)

// cursor owns result-set iteration shared by both backends. Statements
// execute lazily on the first Step; mutating statements take the exec path
// and always report Done.
type cursor struct {
	rows    *sql.Rows
	values  []any
	wrapErr func(context string, err error) error
}

func (c *cursor) step() (StepResult, error) {
	if c.rows == nil {
		return StepDone, nil
	}

	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return StepDone, c.wrapErr("step failed", err)
		}
		return StepDone, nil
	}

	cols, err := c.rows.Columns()
	if err != nil {
		return StepDone, c.wrapErr("step failed", err)
	}

	c.values = make([]any, len(cols))
	dests := make([]any, len(cols))
	for i := range c.values {
		dests[i] = &c.values[i]
	}
	if err := c.rows.Scan(dests...); err != nil {
		return StepDone, c.wrapErr("row scan failed", err)
	}

	return StepRow, nil
}

func (c *cursor) close() error {
	if c.rows == nil {
		return nil
	}
	return c.rows.Close()
}

func (c *cursor) columnInt(index int) int64 {
	if index < 0 || index >= len(c.values) {
		return 0
	}
	switch v := c.values[index].(type) {
	case int64:
		return v
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

func (c *cursor) columnText(index int) string {
	if index < 0 || index >= len(c.values) {
		return ""
	}
	switch v := c.values[index].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

func (c *cursor) columnBlob(index int) []byte {
	if index < 0 || index >= len(c.values) {
		return nil
	}
	switch v := c.values[index].(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	return nil
}

func (c *cursor) columnBytes(index int) int {
	return len(c.columnBlob(index))
}

// isQuery reports whether the statement produces a result set. Everything
// else runs through Exec so LastInsertID stays observable.
func isQuery(sqlText string) bool {
	trimmed := strings.TrimSpace(sqlText)
	if len(trimmed) < 6 {
		return false
	}
	return strings.EqualFold(trimmed[:6], "SELECT")
}

