package input

// Log is an ordered sequence of samples. Insertion order is both
// chronological order and replay order.
type Log []Sample

// Len returns the number of samples.
func (l Log) Len() int {
	return len(l)
}

// Duration returns the timestamp of the last sample in seconds, or 0 for
// an empty log.
func (l Log) Duration() float64 {
	if len(l) == 0 {
		return 0
	}
	return l[len(l)-1].RecordedAt
}

// Equal reports whether both logs hold equal samples in the same order.
func (l Log) Equal(o Log) bool {
	if len(l) != len(o) {
		return false
	}
	for i := range l {
		if !l[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the log.
func (l Log) Clone() Log {
	if l == nil {
		return nil
	}
	out := make(Log, len(l))
	for i, s := range l {
		out[i] = NewSample(s.RecordedAt, s.Controls)
	}
	return out
}

// Anomalies returns the indices of samples whose timestamp is not strictly
// greater than the one before them.
func (l Log) Anomalies() []int {
	var out []int
	for i := 1; i < len(l); i++ {
		if l[i].RecordedAt <= l[i-1].RecordedAt {
			out = append(out, i)
		}
	}
	return out
}
