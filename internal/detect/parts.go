package detect

import "time"

// Rebase shifts part-relative samples onto the source timeline and tags them
// with their 1-based part index
func Rebase(samples []Sample, part int, offset time.Duration) []Sample {
	out := make([]Sample, len(samples))
	for i, s := range samples {
		s.At += offset
		s.Part = part
		out[i] = s
	}
	return out
}

// Combine concatenates rebased per-part samples in part order and runs one
// detector over the result, so the cooldown carries across part boundaries
// as if the recording had been scanned in one piece. Parts may be reduced to
// their keyword matches beforehand; samples without a match never change the
// outcome.
func Combine(perPart [][]Sample, cfg Config) []Event {
	var all []Sample
	for _, samples := range perPart {
		all = append(all, samples...)
	}
	return Detect(all, cfg)
}
