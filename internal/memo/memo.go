// Package memo stamps a per-attempt suffix onto a DataRequest memo so that
// retried submissions never collide on SEDA's content-addressed dr_id
// (spec §4.2).
package memo

import "strconv"

// Generate returns base+" | seq:"+seq, matching spec §4.2 exactly.
func Generate(base []byte, seq uint64) []byte {
	out := make([]byte, 0, len(base)+8+20)
	out = append(out, base...)
	out = append(out, " | seq:"...)
	out = append(out, strconv.FormatUint(seq, 10)...)
	return out
}
