package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBareSelect(t *testing.T) {
	q, err := Parse("SELECT anchors")
	require.NoError(t, err)
	assert.Empty(t, q.Conditions)

	sql, args := q.SQL()
	assert.Empty(t, sql)
	assert.Empty(t, args)
}

func TestParseMixedConditions(t *testing.T) {
	q, err := Parse(`select anchors where fqn CONTAINS 'demo.pkg' and kind = 'ref' AND start >= 100`)
	require.NoError(t, err)
	require.Len(t, q.Conditions, 3)

	sql, args := q.SQL()
	assert.Equal(t, `fqn LIKE ? ESCAPE '\' AND kind = ? AND start_byte >= ?`, sql)
	assert.Equal(t, []any{"%demo.pkg%", "ref", 100}, args)
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, err := Parse(`SELECT anchors WHERE color = 'red'`)
	assert.ErrorContains(t, err, "unknown field")
}

func TestParseRejectsWrongValueType(t *testing.T) {
	_, err := Parse(`SELECT anchors WHERE start = 'ten'`)
	assert.ErrorContains(t, err, "takes a number")

	_, err = Parse(`SELECT anchors WHERE kind = 3`)
	assert.ErrorContains(t, err, "quoted string")
}

func TestParseRejectsOtherTargets(t *testing.T) {
	_, err := Parse(`SELECT files`)
	assert.ErrorContains(t, err, "SELECT anchors")
}

func TestContainsEscapesWildcards(t *testing.T) {
	q, err := Parse(`SELECT anchors WHERE text CONTAINS '100%'`)
	require.NoError(t, err)

	_, args := q.SQL()
	assert.Equal(t, []any{`%100\%%`}, args)
}
