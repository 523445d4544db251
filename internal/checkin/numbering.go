package checkin

import (
	"fmt"
	"strconv"
	"strings"

	"checkin-desk/internal/domain"
)

// MaxTeamNumber highest numeric team number in numbers; non-numeric values are ignored
func MaxTeamNumber(numbers []string) int {
	highest := 0
	for _, s := range numbers {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}

// NumberIssuer hands out team numbers for one transaction attempt
type NumberIssuer struct {
	next int
}

// NewNumberIssuer starts after the event's current maximum
func NewNumberIssuer(maxIssued int) *NumberIssuer {
	return &NumberIssuer{next: maxIssued + 1}
}

// TeamNumber reuses existing when set, otherwise issues the next zero-padded number
func (i *NumberIssuer) TeamNumber(existing string) string {
	if existing != "" {
		return existing
	}
	n := fmt.Sprintf("%03d", i.next)
	i.next++
	return n
}

// StudentNumbers returns student_id -> number for a team. Students already numbered under
// teamNumber keep their number; the rest get the first free letter A-Z in student order.
func StudentNumbers(teamNumber string, students []domain.Student) (map[string]string, error) {
	var used [26]bool
	for _, s := range students {
		if letter, ok := suffixOf(teamNumber, s.Number.String); ok {
			used[letter] = true
		}
	}

	out := make(map[string]string, len(students))
	next := 0
	for _, s := range students {
		if s.Number.Valid && strings.HasPrefix(s.Number.String, teamNumber) {
			out[s.StudentID] = s.Number.String
			continue
		}
		for next < len(used) && used[next] {
			next++
		}
		if next == len(used) {
			return nil, ErrSuffixExhausted
		}
		used[next] = true
		out[s.StudentID] = teamNumber + string(rune('A'+next))
	}
	return out, nil
}

// suffixOf returns the letter index of number's single-letter suffix under teamNumber
func suffixOf(teamNumber, number string) (int, bool) {
	if !strings.HasPrefix(number, teamNumber) {
		return 0, false
	}
	rest := number[len(teamNumber):]
	if len(rest) != 1 || rest[0] < 'A' || rest[0] > 'Z' {
		return 0, false
	}
	return int(rest[0] - 'A'), true
}
