package statusarea

import "errors"

// ErrStaleMapping is returned when the underlying FSA/FRA file was
// recreated out from under an attached Area (detected via the id field
// written at the head of the file not matching the id cached at Attach
// time). Per spec.md §4.1, the caller must re-Attach and re-locate its
// slot; this package never attempts to transparently re-map.
var ErrStaleMapping = errors.New("statusarea: stale mapping, re-attach required")

// ErrOutOfRange is returned when a requested host or slot position falls
// outside the bounds of the mapped area.
var ErrOutOfRange = errors.New("statusarea: position out of range")
