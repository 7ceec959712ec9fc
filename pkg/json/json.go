// Package json provides pooled JSON encoding built on goccy/go-json.
// Encoders and byte buffers are recycled across calls so report
// emission and diagnostics do not allocate per invocation.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

const defaultBufferSize = 4096

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, defaultBufferSize))
	},
}

// GetBuffer returns a pooled buffer for manual encoding work.
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// PutBuffer resets and returns a buffer to the pool. Oversized buffers
// are dropped so a single large payload does not pin memory.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > 1<<20 {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// Marshal encodes v using a pooled buffer and returns a copied slice.
func Marshal(v interface{}) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	enc := gojson.NewEncoder(buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encode appends a trailing newline; drop it for Marshal parity.
	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	result := make([]byte, len(out))
	copy(result, out)
	return result, nil
}

// MarshalIndent encodes v with indentation for human-readable output.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// MarshalToWriter encodes v directly to w without an intermediate copy.
func MarshalToWriter(v interface{}, w io.Writer) error {
	return gojson.NewEncoder(w).Encode(v)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}
