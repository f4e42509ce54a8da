package conv

import "github.com/guepardlover77/sms-app/internal/store"

// GroupWindowMillis is the gap above which two same-side messages stop
// rendering as one clustered block. The boundary is strict: a gap of
// exactly the window still groups.
const GroupWindowMillis int64 = 5 * 60 * 1000

// LastInGroup reports, for each message of a time-ascending sequence,
// whether it closes its visual group. A message is last in its group when
// it is the final message, when the next message sits on the other side of
// the conversation, or when the next message arrives more than
// GroupWindowMillis later. Pure function of the sequence: any consumer can
// re-derive it without touching the store.
func LastInGroup(msgs []store.Message) []bool {
	if len(msgs) == 0 {
		return nil
	}
	last := make([]bool, len(msgs))
	for i := range msgs {
		if i == len(msgs)-1 {
			last[i] = true
			continue
		}
		next := msgs[i+1]
		if outgoingSide(msgs[i].Direction) != outgoingSide(next.Direction) {
			last[i] = true
			continue
		}
		last[i] = next.Timestamp-msgs[i].Timestamp > GroupWindowMillis
	}
	return last
}

// outgoingSide maps a direction onto the visual side of the thread.
// Failed sends keep their own bubble and intentionally stay out of the
// outgoing cluster.
func outgoingSide(d store.Direction) bool {
	return d == store.Sent || d == store.Outbox || d == store.Draft
}
