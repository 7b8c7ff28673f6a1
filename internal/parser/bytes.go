// Package parser extracts fixed-ordinal fields from pipe-delimited table
// records and writes them into the join indexes.
//
// Records are scanned in place inside the shared table buffer. Fields are
// located by counting delimiters from the record start and integers are
// parsed straight from their ASCII digits, so no per-field strings are
// allocated.
package parser

import "bytes"

// Delimiter separates fields within a record. Every field, including the
// last, is followed by a delimiter.
const Delimiter = '|'

// Field returns the field at the given zero-based ordinal of record. It
// reports false when the record ends before the field's closing delimiter.
func Field(record []byte, ordinal int) ([]byte, bool) {
	start, ok := skipFields(record, 0, ordinal)
	if !ok {
		return nil, false
	}
	end := bytes.IndexByte(record[start:], Delimiter)
	if end < 0 {
		return nil, false
	}
	return record[start : start+end], true
}

// FieldPair returns the fields at ordinals first and second (first < second)
// in a single pass over record.
func FieldPair(record []byte, first, second int) (a, b []byte, ok bool) {
	start, ok := skipFields(record, 0, first)
	if !ok {
		return nil, nil, false
	}
	end := bytes.IndexByte(record[start:], Delimiter)
	if end < 0 {
		return nil, nil, false
	}
	a = record[start : start+end]

	start, ok = skipFields(record, start+end+1, second-first-1)
	if !ok {
		return nil, nil, false
	}
	end = bytes.IndexByte(record[start:], Delimiter)
	if end < 0 {
		return nil, nil, false
	}
	return a, record[start : start+end], true
}

// skipFields advances from offset past n delimiters.
func skipFields(record []byte, offset, n int) (int, bool) {
	for i := 0; i < n; i++ {
		j := bytes.IndexByte(record[offset:], Delimiter)
		if j < 0 {
			return 0, false
		}
		offset += j + 1
	}
	return offset, true
}

// ParseUint parses an unsigned decimal integer from ASCII digits, most
// significant digit first. It reports false for an empty field, a non-digit
// byte, or a value that overflows uint64.
func ParseUint(b []byte) (uint64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var v uint64
	for _, c := range b {
		d := c - '0'
		if d > 9 {
			return 0, false
		}
		if v > (1<<64-1-uint64(d))/10 {
			return 0, false
		}
		v = v*10 + uint64(d)
	}
	return v, true
}
