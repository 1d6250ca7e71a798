package stream

import (
	"bytes"
	"encoding/json"
)

// Decoder buffers undecoded bytes between feeds. Each response owns
// its own Decoder, so concurrent feeds never share state.
//
// The zero value is ready to use.
type Decoder struct {
	buf []byte
}

// Feed appends chunk to the internal buffer and returns every complete
// JSON value now decodable from the front, in arrival order. A suffix
// that fails to decode is kept for the next feed: an incomplete value
// cut mid-stream is not an error, just not ready yet.
func (d *Decoder) Feed(chunk []byte) []any {
	d.buf = append(d.buf, chunk...)

	var values []any
	for {
		d.buf = bytes.TrimLeft(d.buf, " \r\n\t")
		if len(d.buf) == 0 {
			break
		}

		dec := json.NewDecoder(bytes.NewReader(d.buf))
		var v any
		if err := dec.Decode(&v); err != nil {
			// Partial value, wait for more bytes.
			break
		}

		values = append(values, v)
		d.buf = d.buf[dec.InputOffset():]
	}

	return values
}

// Buffered returns the number of undecoded bytes held for the next feed.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}
