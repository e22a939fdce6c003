package cushion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// recordWriter builds one JSON object with a controlled field order, so that
// the state file keeps the record discriminator first on every line.
// Its zero value is ready to use.
type recordWriter struct {
	buf bytes.Buffer
	err error
}

// Field appends key with its json encoded value.
func (w *recordWriter) Field(key string, value any) *recordWriter {
	if w.err != nil {
		return w
	}
	data, err := json.Marshal(value)
	if err != nil {
		w.err = fmt.Errorf("cannot encode field %q: %w", key, err)
		return w
	}
	k, _ := json.Marshal(key)
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(data)
	w.buf.WriteByte(',')
	return w
}

// Optional appends key only when value is not the zero value of its type.
func (w *recordWriter) Optional(key string, value any) *recordWriter {
	if v := reflect.ValueOf(value); !v.IsValid() || v.IsZero() {
		return w
	}
	return w.Field(key, value)
}

// Merge encodes v, which must encode as a JSON object, and appends its
// fields to the record.
func (w *recordWriter) Merge(v any) *recordWriter {
	if w.err != nil {
		return w
	}
	data, err := json.Marshal(v)
	if err != nil {
		w.err = fmt.Errorf("cannot encode %T: %w", v, err)
		return w
	}
	data = bytes.TrimSpace(data)
	if len(data) < 2 || data[0] != '{' || data[len(data)-1] != '}' {
		w.err = fmt.Errorf("cannot merge %T: not a json object", v)
		return w
	}
	if inner := bytes.TrimSpace(data[1 : len(data)-1]); len(inner) > 0 {
		w.buf.Write(inner)
		w.buf.WriteByte(',')
	}
	return w
}

// MarshalJSON closes the object. It satisfies json.Marshaler.
func (w *recordWriter) MarshalJSON() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	content := bytes.TrimSuffix(w.buf.Bytes(), []byte(","))
	out := make([]byte, 0, len(content)+2)
	out = append(out, '{')
	out = append(out, content...)
	return append(out, '}'), nil
}
