// Package hissa allocates the seven hissa (share) slots of a single receipt.
//
// Every operation is a pure transition: it takes a Slots value and returns a
// new Slots value together with an error. A rejected operation returns the
// state it was given, unchanged.
package hissa

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Capacity is both the number of slots and the maximum total weight.
const Capacity = 7

// MaxTextLen is the longest name a slot accepts, in characters.
const MaxTextLen = 250

type Type int

const (
	Qurbani     Type = 1
	AqeeqahBoy  Type = 2
	AqeeqahGirl Type = 3
)

func (t Type) Valid() bool {
	return t == Qurbani || t == AqeeqahBoy || t == AqeeqahGirl
}

// Weight is the number of hissas a slot of this type consumes.
func (t Type) Weight() int {
	if t == AqeeqahBoy {
		return 2
	}
	return 1
}

func (t Type) String() string {
	switch t {
	case Qurbani:
		return "Qurbani"
	case AqeeqahBoy:
		return "Aqeeqah (Boy)"
	case AqeeqahGirl:
		return "Aqeeqah (Girl)"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

var (
	ErrNoPairSlot    = errors.New("no available slot next to this card for an Aqeeqah (Boy) pair")
	ErrOverCapacity  = errors.New("this change would exceed the 7 hissa limit")
	ErrPairedSlot    = errors.New("a paired hissa cannot be edited directly")
	ErrInvalidSlot   = errors.New("hissa slot must be between 1 and 7")
	ErrInvalidType   = errors.New("hissa type must be 1 (Qurbani), 2 (Aqeeqah Boy) or 3 (Aqeeqah Girl)")
	ErrTextTooLong   = fmt.Errorf("name cannot be longer than %d characters", MaxTextLen)
	ErrInvalidState  = errors.New("invalid hissa state")
	ErrNoReceipt     = errors.New("receipt number is required")
	ErrNoNames       = errors.New("at least one hissa must have a name")
	ErrInvalidRegion = errors.New("region must be 1 (Mumbai) or 2 (Out of Mumbai)")
)

type Slot struct {
	ID       int    `json:"id"`
	Type     Type   `json:"type"`
	Text     string `json:"text"`
	IsPaired bool   `json:"isPaired"`
	PairID   *int   `json:"pairId"`
}

func (s Slot) blank() bool { return strings.TrimSpace(s.Text) == "" }

// counted reports whether the slot contributes to the total weight.
func (s Slot) counted() bool { return !s.blank() && !s.IsPaired }

func defaultSlot(id int) Slot {
	return Slot{ID: id, Type: Qurbani}
}

// Slots is the full set of slots for one receipt. Index i holds slot i+1.
type Slots [Capacity]Slot

func NewSlots() Slots {
	var s Slots
	for i := range s {
		s[i] = defaultSlot(i + 1)
	}
	return s
}

// clone deep-copies the PairID pointers so the result shares nothing with s.
func (s Slots) clone() Slots {
	out := s
	for i := range out {
		if out[i].PairID != nil {
			p := *out[i].PairID
			out[i].PairID = &p
		}
	}
	return out
}

func (s *Slots) slot(id int) *Slot { return &s[id-1] }

// secondaryOf returns the index of the slot paired to primary, or -1.
func (s Slots) secondaryOf(primary int) int {
	for i, sl := range s {
		if sl.IsPaired && sl.PairID != nil && *sl.PairID == primary {
			return i
		}
	}
	return -1
}

func (s Slots) TotalWeight() int {
	total := 0
	for _, sl := range s {
		if sl.counted() {
			total += sl.Type.Weight()
		}
	}
	return total
}

// Used is the number of non-blank primary slots.
func (s Slots) Used() int {
	n := 0
	for _, sl := range s {
		if sl.counted() {
			n++
		}
	}
	return n
}

func checkID(id int) error {
	if id < 1 || id > Capacity {
		return ErrInvalidSlot
	}
	return nil
}

// SetType changes the type of a primary slot. Any secondary previously paired
// to it is released first. Choosing AqeeqahBoy claims the first later slot
// that is blank, unpaired and not holding a pair of its own.
func (s Slots) SetType(id int, t Type) (Slots, error) {
	if err := checkID(id); err != nil {
		return s, err
	}
	if !t.Valid() {
		return s, ErrInvalidType
	}
	if s[id-1].IsPaired {
		return s, ErrPairedSlot
	}

	next := s.clone()
	if i := next.secondaryOf(id); i >= 0 {
		next[i] = defaultSlot(i + 1)
	}

	cur := next.slot(id)
	cur.Type = t

	if t == AqeeqahBoy {
		free := -1
		for i := id; i < Capacity; i++ {
			c := next[i]
			if c.blank() && !c.IsPaired && next.secondaryOf(c.ID) < 0 {
				free = i
				break
			}
		}
		if free < 0 {
			return s, ErrNoPairSlot
		}
		pair := id
		next[free] = Slot{
			ID:       free + 1,
			Type:     AqeeqahBoy,
			Text:     cur.Text,
			IsPaired: true,
			PairID:   &pair,
		}
	}

	if next.TotalWeight() > Capacity {
		return s, ErrOverCapacity
	}
	return next, nil
}

// SetText sets the name of a primary slot and mirrors it into the slot's
// secondary when there is one.
func (s Slots) SetText(id int, text string) (Slots, error) {
	if err := checkID(id); err != nil {
		return s, err
	}
	if utf8.RuneCountInString(text) > MaxTextLen {
		return s, ErrTextTooLong
	}
	if s[id-1].IsPaired {
		return s, ErrPairedSlot
	}

	next := s.clone()
	cur := next.slot(id)
	cur.Text = text
	if cur.Type == AqeeqahBoy {
		if i := next.secondaryOf(id); i >= 0 {
			next[i].Text = text
		}
	}
	return next, nil
}

// Clear resets a slot and the secondary paired to it. Clearing a secondary
// clears the pair it belongs to.
func (s Slots) Clear(id int) (Slots, error) {
	if err := checkID(id); err != nil {
		return s, err
	}
	next := s.clone()
	if cur := next[id-1]; cur.IsPaired && cur.PairID != nil && checkID(*cur.PairID) == nil {
		id = *cur.PairID
	}
	if i := next.secondaryOf(id); i >= 0 {
		next[i] = defaultSlot(i + 1)
	}
	next[id-1] = defaultSlot(id)
	return next, nil
}

// Validate checks a state received from a client against every invariant.
func (s Slots) Validate() error {
	claimed := map[int]bool{}
	for i, sl := range s {
		if sl.ID != i+1 {
			return fmt.Errorf("%w: slot %d has id %d", ErrInvalidState, i+1, sl.ID)
		}
		if !sl.Type.Valid() {
			return fmt.Errorf("%w: slot %d: %v", ErrInvalidState, sl.ID, ErrInvalidType)
		}
		if utf8.RuneCountInString(sl.Text) > MaxTextLen {
			return fmt.Errorf("%w: slot %d: %v", ErrInvalidState, sl.ID, ErrTextTooLong)
		}
		if !sl.IsPaired {
			if sl.PairID != nil {
				return fmt.Errorf("%w: slot %d has a pair id but is not paired", ErrInvalidState, sl.ID)
			}
			continue
		}
		if sl.PairID == nil || checkID(*sl.PairID) != nil || *sl.PairID == sl.ID {
			return fmt.Errorf("%w: slot %d has no valid pair id", ErrInvalidState, sl.ID)
		}
		p := s[*sl.PairID-1]
		if p.IsPaired || p.Type != AqeeqahBoy {
			return fmt.Errorf("%w: slot %d is paired to slot %d which is not an Aqeeqah (Boy) entry", ErrInvalidState, sl.ID, p.ID)
		}
		if claimed[p.ID] {
			return fmt.Errorf("%w: slot %d has more than one pair", ErrInvalidState, p.ID)
		}
		claimed[p.ID] = true
		if sl.Text != p.Text {
			return fmt.Errorf("%w: slot %d does not mirror slot %d", ErrInvalidState, sl.ID, p.ID)
		}
	}
	for _, sl := range s {
		if sl.Type == AqeeqahBoy && !sl.IsPaired && !claimed[sl.ID] {
			return fmt.Errorf("%w: slot %d is an Aqeeqah (Boy) entry without a pair", ErrInvalidState, sl.ID)
		}
	}
	if s.TotalWeight() > Capacity {
		return fmt.Errorf("%w: %v", ErrInvalidState, ErrOverCapacity)
	}
	return nil
}
