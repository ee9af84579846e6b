package brackets

import (
	"fmt"
	"sort"
	"time"
)

// SeedEntry is the slice of a registration the repair algorithm needs.
type SeedEntry struct {
	RegistrationID int
	Slot           *int
	CreatedAt      time.Time
}

type SlotAssignment struct {
	RegistrationID int `json:"registration_id"`
	Slot           int `json:"slot"`
}

// RepairResult carries the minimal set of writes a caller has to apply:
// one slot per previously unseeded registration, plus the grown capacity
// when the current one could not hold everybody.
type RepairResult struct {
	Assignments []SlotAssignment
	NewCapacity int
	Grown       bool
}

// NextPowerOfTwo returns the smallest power of two >= n, never below 2.
func NextPowerOfTwo(n int) int {
	p := 2
	for p < n {
		p <<= 1
	}
	return p
}

func IsPowerOfTwo(n int) bool {
	return n >= 2 && n&(n-1) == 0
}

// RepairSlots assigns gap-free seed positions to the unseeded entries.
//
// Fill order: unseeded entries sorted by CreatedAt ascending (registration id
// ascending as tie-break) each take the lowest unoccupied slot index, scanning
// upward from 1. The rule is deterministic so re-running repair after a
// partial failure produces the same assignments. Capacity grows to the
// smallest power of two holding all entries and never shrinks; a seeded slot
// above the current capacity (legacy data) stays put and the capacity is
// raised over it instead.
//
// Pure: performs no persistence. Callers write each assignment back to its
// registration and, when Grown, the new capacity back to the category.
func RepairSlots(entries []SeedEntry, currentCapacity int) (RepairResult, error) {
	capacity := currentCapacity

	occupied := make(map[int]bool, len(entries))
	unseeded := make([]SeedEntry, 0, len(entries))
	highest := 0

	for _, e := range entries {
		if e.Slot == nil {
			unseeded = append(unseeded, e)
			continue
		}
		s := *e.Slot
		if s < 1 {
			return RepairResult{}, fmt.Errorf("registration %d has invalid slot %d", e.RegistrationID, s)
		}
		if occupied[s] {
			return RepairResult{}, fmt.Errorf("registration %d duplicates occupied slot %d", e.RegistrationID, s)
		}
		occupied[s] = true
		if s > highest {
			highest = s
		}
	}

	if len(entries) > capacity {
		capacity = NextPowerOfTwo(len(entries))
	}

	sort.SliceStable(unseeded, func(i, j int) bool {
		if !unseeded[i].CreatedAt.Equal(unseeded[j].CreatedAt) {
			return unseeded[i].CreatedAt.Before(unseeded[j].CreatedAt)
		}
		return unseeded[i].RegistrationID < unseeded[j].RegistrationID
	})

	assignments := make([]SlotAssignment, 0, len(unseeded))
	next := 1
	for _, e := range unseeded {
		for occupied[next] {
			next++
		}
		occupied[next] = true
		assignments = append(assignments, SlotAssignment{RegistrationID: e.RegistrationID, Slot: next})
		if next > highest {
			highest = next
		}
		next++
	}

	if highest > capacity {
		capacity = NextPowerOfTwo(highest)
	}

	return RepairResult{
		Assignments: assignments,
		NewCapacity: capacity,
		Grown:       capacity != currentCapacity,
	}, nil
}
