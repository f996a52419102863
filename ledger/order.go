package ledger

import "sort"

// OrderEntries returns a new slice containing entries sorted into the
// deterministic total order defined by §4.2: ascending lamport_clock, then
// ascending timestamp, then lexicographic creator_device_pubkey, then
// lexicographic entry_id. The input is never mutated (P3: stable under any
// permutation of inputs).
func OrderEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.LamportClock != b.LamportClock {
			return a.LamportClock < b.LamportClock
		}
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		if a.CreatorDevicePubkey != b.CreatorDevicePubkey {
			return a.CreatorDevicePubkey < b.CreatorDevicePubkey
		}
		return a.EntryID < b.EntryID
	})
	return out
}
