// Package seatmap does the seat label arithmetic behind screen QR
// generation: alphabetical row labels (A..Z, AA..), row ranges, seat
// label generation and the grouped layout used for previews.
package seatmap

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxSeats caps one generation request.
const MaxSeats = 2000

var (
	ErrInvalidRow   = errors.New("invalid row label")
	ErrInvalidRange = errors.New("invalid row range")
	ErrInvalidSeat  = errors.New("invalid seat label")
	ErrEmpty        = errors.New("no rows or seats")
	ErrTooMany      = fmt.Errorf("more than %d seats", MaxSeats)
)

// IndexToRowLabel converts a zero-based index to an alphabetical row label like A, B, AA.
func IndexToRowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		rem := i % 26
		res = append(res, rune('A'+rem))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// RowLabelToIndex converts a row label like A or AA into its zero-based index.
func RowLabelToIndex(label string) (int, bool) {
	s := strings.ToUpper(strings.TrimSpace(label))
	if s == "" || len(s) > 3 {
		return -1, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch < 'A' || ch > 'Z' {
			return -1, false
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n - 1, true
}

// ParseRowRange accepts "C" or an inclusive range "A-D" and returns the row
// labels in order. Descending ranges are rejected.
func ParseRowRange(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	from, to, isRange := strings.Cut(s, "-")
	start, ok := RowLabelToIndex(from)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRow, from)
	}
	end := start
	if isRange {
		if end, ok = RowLabelToIndex(to); !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRow, to)
		}
	}
	if end < start {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	out := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, IndexToRowLabel(i))
	}
	return out, nil
}

// Spec describes a block of seats.
type Spec struct {
	Rows        []string // row labels, see ParseRowRange
	SeatsPerRow int
	StartNumber int      // first seat number, 1 when zero
	Skip        []string // seat labels to leave out
}

// Generate returns the seat labels of spec row by row, e.g. A1 A2 ... B1.
func Generate(spec Spec) ([]string, error) {
	if len(spec.Rows) == 0 || spec.SeatsPerRow <= 0 {
		return nil, ErrEmpty
	}
	if len(spec.Rows)*spec.SeatsPerRow > MaxSeats {
		return nil, ErrTooMany
	}
	start := spec.StartNumber
	if start <= 0 {
		start = 1
	}
	skip := make(map[string]bool, len(spec.Skip))
	for _, s := range spec.Skip {
		skip[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	seen := make(map[string]bool, len(spec.Rows))
	out := make([]string, 0, len(spec.Rows)*spec.SeatsPerRow)
	for _, raw := range spec.Rows {
		idx, ok := RowLabelToIndex(raw)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRow, raw)
		}
		row := IndexToRowLabel(idx)
		if seen[row] {
			continue
		}
		seen[row] = true
		for n := start; n < start+spec.SeatsPerRow; n++ {
			label := row + strconv.Itoa(n)
			if !skip[label] {
				out = append(out, label)
			}
		}
	}
	return out, nil
}

// ParseSeatLabel splits "AA12" into row "AA" and number 12.
func ParseSeatLabel(label string) (string, int, error) {
	s := strings.ToUpper(strings.TrimSpace(label))
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(s) {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidSeat, label)
	}
	if _, ok := RowLabelToIndex(s[:i]); !ok {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidSeat, label)
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil || n <= 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidSeat, label)
	}
	return s[:i], n, nil
}

// Row is one row of a layout.
type Row struct {
	Label string `json:"row"`
	Seats []int  `json:"seats"`
}

// Layout groups seat labels into rows.
type Layout struct {
	Rows    []Row `json:"rows"`
	MaxSeat int   `json:"max_seat"`
	Total   int   `json:"total"`
}

// BuildLayout groups labels by row ordered by row index, with seat numbers
// sorted. Labels that do not parse are ignored.
func BuildLayout(labels []string) Layout {
	byRow := map[string][]int{}
	l := Layout{Rows: []Row{}}
	for _, lab := range labels {
		row, n, err := ParseSeatLabel(lab)
		if err != nil {
			continue
		}
		byRow[row] = append(byRow[row], n)
		l.Total++
		if n > l.MaxSeat {
			l.MaxSeat = n
		}
	}
	for row, seats := range byRow {
		sort.Ints(seats)
		l.Rows = append(l.Rows, Row{Label: row, Seats: seats})
	}
	sort.Slice(l.Rows, func(i, j int) bool {
		a, _ := RowLabelToIndex(l.Rows[i].Label)
		b, _ := RowLabelToIndex(l.Rows[j].Label)
		return a < b
	})
	return l
}
