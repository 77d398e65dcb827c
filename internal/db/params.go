package db

// NormalizedSql is the cached mapping from a named-parameter SQL template to
// its positional form. Binding a logical index once applies the value to
// every native position derived from that name.
type NormalizedSql struct {
	SQL string
	// LogicalIndexByName maps "@name" to its logical index, assigned in
	// first-seen order.
	LogicalIndexByName map[string]int
	// PositionsByLogicalIndex lists the 1-based native positions each
	// logical index occupies; a name used several times owns several
	// positions.
	PositionsByLogicalIndex [][]int
	// LogicalIndexByPosition maps each native position (0-based slice
	// index, positions in template order) back to its owning logical index.
	LogicalIndexByPosition []int
}

func isParameterNameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_'
}

// NormalizeNamedParameters rewrites @name parameter tokens to positional `?`
// placeholders in a single left-to-right scan. A name seen again reuses its
// logical index and appends a new native position. No SQL validation is
// performed; an @ inside a string literal is treated as a parameter, so SQL
// text used with this adapter must keep literals free of @.
func NormalizeNamedParameters(sql string) NormalizedSql {
	result := NormalizedSql{
		LogicalIndexByName: make(map[string]int),
	}

	out := make([]byte, 0, len(sql))
	position := 0

	for i := 0; i < len(sql); {
		if sql[i] != '@' {
			out = append(out, sql[i])
			i++
			continue
		}

		start := i
		i++
		for i < len(sql) && isParameterNameChar(sql[i]) {
			i++
		}

		name := sql[start:i]

		logicalIndex, ok := result.LogicalIndexByName[name]
		if !ok {
			logicalIndex = len(result.PositionsByLogicalIndex)
			result.LogicalIndexByName[name] = logicalIndex
			result.PositionsByLogicalIndex = append(result.PositionsByLogicalIndex, nil)
		}

		position++
		result.PositionsByLogicalIndex[logicalIndex] = append(result.PositionsByLogicalIndex[logicalIndex], position)
		result.LogicalIndexByPosition = append(result.LogicalIndexByPosition, logicalIndex)
		out = append(out, '?')
	}

	result.SQL = string(out)
	return result
}
