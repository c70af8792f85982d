package retrievelist

import "errors"

// ErrAlreadyClaimed is returned by Claim when another worker won the race
// to claim the entry first (spec.md §4.2).
var ErrAlreadyClaimed = errors.New("retrievelist: entry already claimed")

// ErrOutOfRange is returned when an entry index is outside the store.
var ErrOutOfRange = errors.New("retrievelist: index out of range")
