// Package filter holds the map's type filter: two toggle groups sharing a
// ceiling on how many types may be active at once.
package filter

import (
	"fmt"
	"slices"

	"accizard/internal/domain"
	"accizard/pkg/e"
)

// MaxActive bounds backend query fan-out and marker count.
const MaxActive = 10

type Group string

const (
	GroupHazard   Group = "hazard"
	GroupFacility Group = "facility"
)

func (g Group) keys() []domain.PinType {
	switch g {
	case GroupHazard:
		return domain.HazardTypes
	case GroupFacility:
		return domain.FacilityTypes
	default:
		return nil
	}
}

func (g Group) other() Group {
	if g == GroupHazard {
		return GroupFacility
	}
	return GroupHazard
}

// Selection is not safe for concurrent use; the console session guards it.
type Selection struct {
	groups map[Group]map[domain.PinType]bool
}

func NewSelection() *Selection {
	s := &Selection{groups: make(map[Group]map[domain.PinType]bool, 2)}
	for _, g := range []Group{GroupHazard, GroupFacility} {
		m := make(map[domain.PinType]bool, len(g.keys()))
		for _, k := range g.keys() {
			m[k] = false
		}
		s.groups[g] = m
	}
	return s
}

func (s *Selection) Count() int {
	return s.activeIn(GroupHazard) + s.activeIn(GroupFacility)
}

func (s *Selection) activeIn(g Group) int {
	n := 0
	for _, on := range s.groups[g] {
		if on {
			n++
		}
	}
	return n
}

// Toggle flips one key. Unselecting always succeeds; selecting fails with
// e.ErrLimitExceeded when MaxActive keys are already on.
func (s *Selection) Toggle(g Group, key domain.PinType) error {
	m, ok := s.groups[g]
	if !ok {
		return fmt.Errorf("filter.Toggle: unknown group %q: %w", g, e.ErrInvalidInput)
	}
	on, ok := m[key]
	if !ok {
		return fmt.Errorf("filter.Toggle: %q not in group %q: %w", key, g, e.ErrInvalidInput)
	}
	if on {
		m[key] = false
		return nil
	}
	if s.Count() >= MaxActive {
		return fmt.Errorf("filter.Toggle: %d types already active: %w", MaxActive, e.ErrLimitExceeded)
	}
	m[key] = true
	return nil
}

// SelectAll sets every key of a group. Selecting is all-or-nothing: if the
// group plus the other group's active keys would exceed MaxActive nothing changes.
func (s *Selection) SelectAll(g Group, checked bool) error {
	m, ok := s.groups[g]
	if !ok {
		return fmt.Errorf("filter.SelectAll: unknown group %q: %w", g, e.ErrInvalidInput)
	}
	if checked {
		if need := len(m) + s.activeIn(g.other()); need > MaxActive {
			return fmt.Errorf("filter.SelectAll: %d types would be active: %w", need, e.ErrLimitExceeded)
		}
	}
	for k := range m {
		m[k] = checked
	}
	return nil
}

func (s *Selection) IsActive(key domain.PinType) bool {
	for _, m := range s.groups {
		if m[key] {
			return true
		}
	}
	return false
}

// ActiveTypes lists selected types in catalogue order.
func (s *Selection) ActiveTypes() []domain.PinType {
	out := make([]domain.PinType, 0, MaxActive)
	for _, g := range []Group{GroupHazard, GroupFacility} {
		for _, k := range g.keys() {
			if s.groups[g][k] {
				out = append(out, k)
			}
		}
	}
	return out
}

// Filter builds the store predicate; an empty selection matches every type.
func (s *Selection) Filter(base domain.PinFilter) domain.PinFilter {
	base.Types = s.ActiveTypes()
	return base
}

type GroupState struct {
	Group Group      `json:"group"`
	Keys  []KeyState `json:"keys"`
}

type KeyState struct {
	Type     domain.PinType `json:"type"`
	Label    string         `json:"label"`
	Selected bool           `json:"selected"`
}

type Snapshot struct {
	Groups    []GroupState `json:"groups"`
	Active    int          `json:"active"`
	MaxActive int          `json:"max_active"`
}

func (s *Selection) Snapshot() Snapshot {
	snap := Snapshot{Active: s.Count(), MaxActive: MaxActive}
	for _, g := range []Group{GroupHazard, GroupFacility} {
		gs := GroupState{Group: g}
		for _, k := range g.keys() {
			gs.Keys = append(gs.Keys, KeyState{Type: k, Label: k.Label(), Selected: s.groups[g][k]})
		}
		snap.Groups = append(snap.Groups, gs)
	}
	return snap
}

// Clone returns an independent copy.
func (s *Selection) Clone() *Selection {
	c := NewSelection()
	for g, m := range s.groups {
		for k, v := range m {
			c.groups[g][k] = v
		}
	}
	return c
}

func (s *Selection) Equal(o *Selection) bool {
	return slices.Equal(s.ActiveTypes(), o.ActiveTypes())
}

func ParseGroup(s string) (Group, error) {
	switch Group(s) {
	case GroupHazard, GroupFacility:
		return Group(s), nil
	}
	return "", fmt.Errorf("unknown filter group %q: %w", s, e.ErrInvalidInput)
}
