// Package reconcile merges each model turn with prior user edits into a
// consistent item state and recomputes invoice totals from it.
package reconcile

import (
	"github.com/thebtf/factura/pkg/models"
)

// State is the reconciled item state after a turn. Pending items keep their
// proposal order; saved ids survive turns until their item disappears.
type State struct {
	AvailableItems []models.KnownItem
	PendingItems   []models.PendingItem
	SavedItemIDs   map[string]bool
}

// NewState returns an empty state.
func NewState() *State {
	return &State{SavedItemIDs: make(map[string]bool)}
}

// Clone deep-copies the state.
func (s *State) Clone() *State {
	out := &State{
		AvailableItems: append([]models.KnownItem(nil), s.AvailableItems...),
		PendingItems:   append([]models.PendingItem(nil), s.PendingItems...),
		SavedItemIDs:   make(map[string]bool, len(s.SavedItemIDs)),
	}
	for id, saved := range s.SavedItemIDs {
		out.SavedItemIDs[id] = saved
	}
	return out
}

// PendingByID finds a pending item by id.
func (s *State) PendingByID(id string) (*models.PendingItem, bool) {
	for i := range s.PendingItems {
		if s.PendingItems[i].ID == id {
			return &s.PendingItems[i], true
		}
	}
	return nil, false
}

// AllSaved reports whether every pending item has been saved.
func (s *State) AllSaved() bool {
	for _, item := range s.PendingItems {
		if !s.SavedItemIDs[item.ID] {
			return false
		}
	}
	return true
}
