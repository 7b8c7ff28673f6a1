// Package chunk splits memory-resident table files into byte ranges and
// corrects range boundaries so that every newline-terminated record is claimed
// by exactly one range.
package chunk

import "bytes"

// Range is a half-open byte interval [Start, End) of a table file.
type Range struct {
	Start int
	End   int
}

// Len returns the number of bytes in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Empty reports whether the range contains no bytes.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// Split divides [0, length) into n contiguous ranges of nearly equal size.
// The first length%n ranges are one byte longer. When length < n only length
// single-byte ranges are returned; an empty file yields no ranges.
func Split(length, n int) []Range {
	if length <= 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if n > length {
		n = length
	}

	ranges := make([]Range, n)
	base, extra := length/n, length%n
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		ranges[i] = Range{Start: start, End: start + size}
		start += size
	}
	return ranges
}

// Align applies boundary correction to a nominal range of data.
//
// A range that does not begin at offset 0 skips forward past the first newline
// at or after its start; the record that newline terminates belongs to the
// previous range. The range then extends past its nominal end through the
// first newline at or after end (or to the end of data). A record starting at
// offset p is thus owned by the range with Start < p <= End, or by the first
// range when p == 0. The returned range may be empty.
func Align(data []byte, r Range) Range {
	n := len(data)
	start, end := r.Start, r.End
	if end > n {
		end = n
	}

	if start > 0 {
		start = afterNewline(data, start)
	}
	if end > 0 && end < n {
		end = afterNewline(data, end)
	} else if end > 0 {
		end = n
	}

	if start > end {
		start = end
	}
	return Range{Start: start, End: end}
}

// afterNewline returns the offset following the first '\n' at or after from,
// or len(data) when there is none.
func afterNewline(data []byte, from int) int {
	if from >= len(data) {
		return len(data)
	}
	i := bytes.IndexByte(data[from:], '\n')
	if i < 0 {
		return len(data)
	}
	return from + i + 1
}

// Plan splits data into n ranges and aligns each one. Empty aligned ranges are
// dropped.
func Plan(data []byte, n int) []Range {
	nominal := Split(len(data), n)
	planned := make([]Range, 0, len(nominal))
	for _, r := range nominal {
		aligned := Align(data, r)
		if !aligned.Empty() {
			planned = append(planned, aligned)
		}
	}
	return planned
}
