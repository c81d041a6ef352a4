// Package sse implements the text/event-stream transport: an incremental
// frame decoder and an HTTP streaming adapter.
package sse

import (
	"bytes"
	"errors"
	"strings"
)

// DefaultMaxBuffer is the default ceiling on bytes buffered while waiting for
// a record delimiter. A server that never sends one fails the stream instead
// of growing the buffer without bound.
const DefaultMaxBuffer = 1 << 20

// ErrFrameTooLarge indicates the buffered partial record exceeded the
// decoder's limit.
var ErrFrameTooLarge = errors.New("sse: buffered record exceeds limit")

// Record is one complete server-sent event.
type Record struct {
	// Event is the optional event name field. Framing metadata only; the
	// payload's own type tag is authoritative.
	Event string

	// Data is the payload, multi-line data fields joined with newlines.
	Data string
}

// Decoder turns an arbitrarily chunked byte stream into complete records.
//
// Chunk boundaries never affect output: feeding a stream one byte at a time
// produces the same records as feeding it whole. A trailing partial record
// stays buffered until the delimiter arrives or Flush is called.
type Decoder struct {
	buf       []byte
	maxBuffer int

	// fields of the record currently being assembled
	eventName string
	dataLines []string
	sawField  bool
	pending   int // bytes held in the record in progress
}

// NewDecoder creates a decoder with the given buffer ceiling.
// maxBuffer <= 0 selects DefaultMaxBuffer.
func NewDecoder(maxBuffer int) *Decoder {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	return &Decoder{maxBuffer: maxBuffer}
}

// Write appends a chunk to the internal buffer. The ceiling covers both the
// raw buffer and the record in progress, so a server emitting endless data
// lines without a delimiter is bounded the same as one that never sends a
// newline at all.
func (d *Decoder) Write(p []byte) error {
	if len(d.buf)+d.pending+len(p) > d.maxBuffer {
		return ErrFrameTooLarge
	}
	d.buf = append(d.buf, p...)
	return nil
}

// Next returns the next complete record, or ok=false when the buffer holds no
// complete record yet.
func (d *Decoder) Next() (Record, bool) {
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			return Record{}, false
		}
		line := string(d.buf[:idx])
		d.buf = d.buf[idx+1:]
		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			// Blank line terminates the record.
			if rec, ok := d.take(); ok {
				return rec, true
			}
			continue
		}
		d.field(line)
	}
}

// Flush returns the record assembled from any trailing lines that were never
// followed by a blank line. Call once at end of stream.
func (d *Decoder) Flush() (Record, bool) {
	for len(d.buf) > 0 {
		idx := bytes.IndexByte(d.buf, '\n')
		var line string
		if idx < 0 {
			line = string(d.buf)
			d.buf = nil
		} else {
			line = string(d.buf[:idx])
			d.buf = d.buf[idx+1:]
		}
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			if rec, ok := d.take(); ok {
				return rec, true
			}
			continue
		}
		d.field(line)
	}
	return d.take()
}

// Buffered returns the number of bytes held for the next record, raw buffer
// plus the record in progress.
func (d *Decoder) Buffered() int {
	return len(d.buf) + d.pending
}

// field applies one non-blank line to the record in progress.
func (d *Decoder) field(line string) {
	if strings.HasPrefix(line, ":") {
		// Comment / keep-alive.
		return
	}
	name, value := line, ""
	if idx := strings.Index(line, ":"); idx >= 0 {
		name = line[:idx]
		value = line[idx+1:]
		value = strings.TrimPrefix(value, " ")
	}
	switch name {
	case "data":
		d.dataLines = append(d.dataLines, value)
		d.pending += len(value) + 1
		d.sawField = true
	case "event":
		d.pending += len(value) - len(d.eventName)
		d.eventName = value
		d.sawField = true
	default:
		// id, retry and unknown fields are framing metadata this
		// client does not use.
	}
}

// take finalizes the record in progress, if any fields were seen.
func (d *Decoder) take() (Record, bool) {
	if !d.sawField {
		return Record{}, false
	}
	rec := Record{
		Event: d.eventName,
		Data:  strings.Join(d.dataLines, "\n"),
	}
	d.eventName = ""
	d.dataLines = nil
	d.sawField = false
	d.pending = 0
	return rec, true
}
