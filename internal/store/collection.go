package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"conman/internal/models"
)

// NoIndex tells Upsert to append.
const NoIndex = -1

// ErrIndexOutOfRange is returned by Upsert for a replacement index outside the list.
var ErrIndexOutOfRange = errors.New("index out of range")

// Sorted returns a copy ordered by name, case-insensitively. Equal keys keep their relative order.
func Sorted(records []models.Connection) []models.Connection {
	out := make([]models.Connection, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Upsert appends record when index is NoIndex, otherwise replaces the record at index.
func Upsert(records []models.Connection, index int, record models.Connection) ([]models.Connection, error) {
	if index == NoIndex {
		return append(records, record), nil
	}
	if index < 0 || index >= len(records) {
		return records, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	records[index] = record
	return records, nil
}

// Remove deletes the record at index. An index outside the list leaves it unchanged.
func Remove(records []models.Connection, index int) []models.Connection {
	if index < 0 || index >= len(records) {
		return records
	}
	return append(records[:index], records[index+1:]...)
}

// IndexOf finds name case-insensitively, -1 when absent.
func IndexOf(records []models.Connection, name string) int {
	name = strings.TrimSpace(name)
	_, idx, ok := lo.FindIndexOf(records, func(c models.Connection) bool {
		return strings.EqualFold(c.Name, name)
	})
	if !ok {
		return -1
	}
	return idx
}

// Merge folds incoming into current. With replace the result is incoming; otherwise
// records with a matching name are replaced in place and new names are appended.
func Merge(current, incoming []models.Connection, replace bool) []models.Connection {
	if replace {
		out := make([]models.Connection, len(incoming))
		copy(out, incoming)
		return out
	}
	out := make([]models.Connection, len(current), len(current)+len(incoming))
	copy(out, current)
	for _, c := range incoming {
		if idx := IndexOf(out, c.Name); idx >= 0 {
			out[idx] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

// Names lists the record names in order.
func Names(records []models.Connection) []string {
	return lo.Map(records, func(c models.Connection, _ int) string { return c.Name })
}
