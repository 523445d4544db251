package checkin

import (
	"database/sql"
	"fmt"
	"testing"

	"checkin-desk/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }

func TestMaxTeamNumber(t *testing.T) {
	assert.Equal(t, 0, MaxTeamNumber(nil))
	assert.Equal(t, 2, MaxTeamNumber([]string{"001", "002"}))
	assert.Equal(t, 17, MaxTeamNumber([]string{"017", "abc", "", "009"}))
}

func TestNumberIssuer_Sequential(t *testing.T) {
	iss := NewNumberIssuer(MaxTeamNumber([]string{"001", "002"}))

	assert.Equal(t, "003", iss.TeamNumber(""))
	assert.Equal(t, "042", iss.TeamNumber("042"))
	assert.Equal(t, "004", iss.TeamNumber(""))
}

func TestStudentNumbers_KeepsExistingAndFillsGaps(t *testing.T) {
	students := []domain.Student{
		{StudentID: "s1", Number: num("005B")},
		{StudentID: "s2"},
		{StudentID: "s3", Number: num("004A")}, // stale number from another team
		{StudentID: "s4"},
	}

	got, err := StudentNumbers("005", students)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"s1": "005B",
		"s2": "005A",
		"s3": "005C",
		"s4": "005D",
	}, got)
}

func TestStudentNumbers_UniqueSuffixes(t *testing.T) {
	students := make([]domain.Student, 26)
	for i := range students {
		students[i] = domain.Student{StudentID: fmt.Sprintf("s%02d", i)}
	}

	got, err := StudentNumbers("010", students)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, n := range got {
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
	assert.Equal(t, "010Z", got["s25"])
}

func TestStudentNumbers_Exhausted(t *testing.T) {
	students := make([]domain.Student, 27)
	for i := range students {
		students[i] = domain.Student{StudentID: fmt.Sprintf("s%02d", i)}
	}

	_, err := StudentNumbers("010", students)
	assert.ErrorIs(t, err, ErrSuffixExhausted)
}
