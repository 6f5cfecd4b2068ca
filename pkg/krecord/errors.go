package krecord

import "errors"

var (
	// ErrUnknownAnyType is returned when decoding an Any record whose
	// type identifier has no registered decoder.
	ErrUnknownAnyType = errors.New("krecord: unknown Any type identifier")

	// ErrShortBuffer is returned by Read when the wire buffer is
	// truncated relative to the length prefixes it advertises.
	ErrShortBuffer = errors.New("krecord: short buffer")

	// ErrBufferFull is returned by Write when the caller-supplied
	// remaining-byte budget would be exceeded.
	ErrBufferFull = errors.New("krecord: write exceeds remaining buffer budget")
)
