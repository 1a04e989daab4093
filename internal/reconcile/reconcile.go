// Package reconcile merges server confirmed messages into a locally held,
// ordered message list. Every function returns a new slice and leaves its
// input untouched.
//
// Optimistic entries are matched to confirmations by position only: the
// first entry whose id carries the temp- prefix is replaced. The server does
// not echo a client correlation id, so two sends in flight may be confirmed
// against each other's placeholder. The final list still holds every
// confirmed message exactly once.
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/newton/pkg/models"
)

// TempPrefix marks locally generated ids.
const TempPrefix = "temp-"

// TempID returns an optimistic id of the form temp-<kind>-<unix ms>.
func TempID(kind string, at time.Time) string {
	return fmt.Sprintf("%s%s-%d", TempPrefix, kind, at.UnixMilli())
}

// IsTemp reports whether id was generated locally.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// ApplyConfirmed reconciles a message_sent confirmation. The first temp-
// entry is replaced in place; without one the confirmation is appended. If
// the confirmed id is already present (its new_message copy won the race),
// the temp- entry is dropped instead so the id never appears twice.
func ApplyConfirmed(msgs []models.Message, confirmed models.Message) []models.Message {
	tempIdx := -1
	existing := -1
	for i := range msgs {
		if tempIdx < 0 && IsTemp(msgs[i].ID) {
			tempIdx = i
		}
		if existing < 0 && confirmed.ID != "" && msgs[i].ID == confirmed.ID {
			existing = i
		}
	}

	switch {
	case existing >= 0 && tempIdx >= 0:
		out := make([]models.Message, 0, len(msgs)-1)
		out = append(out, msgs[:tempIdx]...)
		return append(out, msgs[tempIdx+1:]...)
	case existing >= 0:
		return clone(msgs)
	case tempIdx >= 0:
		out := clone(msgs)
		out[tempIdx] = confirmed
		return out
	default:
		return append(clone(msgs), confirmed)
	}
}

// AppendUnique appends an inbound message unless a message with the same id
// is already present. It reports whether the message was added.
func AppendUnique(msgs []models.Message, m models.Message) ([]models.Message, bool) {
	if Contains(msgs, m.ID) {
		return msgs, false
	}
	return append(clone(msgs), m), true
}

// Contains reports whether a message with id is present.
func Contains(msgs []models.Message, id string) bool {
	if id == "" {
		return false
	}
	for i := range msgs {
		if msgs[i].ID == id {
			return true
		}
	}
	return false
}

// SetStatus updates the status of the message with id. It reports whether a
// message matched.
func SetStatus(msgs []models.Message, id string, status models.MessageStatus) ([]models.Message, bool) {
	for i := range msgs {
		if msgs[i].ID == id {
			out := clone(msgs)
			out[i].Status = status
			return out, true
		}
	}
	return msgs, false
}

// Merge appends every message from page whose id is not yet present,
// preserving page order. Used when a polled history page overlaps with
// messages already received over the socket.
func Merge(msgs, page []models.Message) []models.Message {
	seen := make(map[string]struct{}, len(msgs)+len(page))
	for i := range msgs {
		seen[msgs[i].ID] = struct{}{}
	}
	out := clone(msgs)
	for _, m := range page {
		if _, ok := seen[m.ID]; ok && m.ID != "" {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

func clone(msgs []models.Message) []models.Message {
	out := make([]models.Message, len(msgs), len(msgs)+1)
	copy(out, msgs)
	return out
}
