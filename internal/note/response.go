// internal/note/response.go
package note

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// fieldSet is the pooled storage behind a Response. Response handles are
// never reused, so a handle released twice cannot touch a later owner's fields.
type fieldSet struct {
	m map[string]any
}

var fieldPool = sync.Pool{
	New: func() any { return &fieldSet{m: make(map[string]any)} },
}

// Response is a decoded bridge reply. It is owned by the caller of
// Card.Transaction and MUST be released, typically with defer rsp.Release().
// Accessors on a released response return zero values.
type Response struct {
	set   *fieldSet
	owner *Card
}

func newResponse(owner *Card) *Response {
	return &Response{set: fieldPool.Get().(*fieldSet), owner: owner}
}

func (r *Response) field(key string) (any, bool) {
	if r == nil || r.set == nil {
		return nil, false
	}
	v, ok := r.set.m[key]
	return v, ok
}

// Release returns the field storage to the pool. Safe on nil; calls after
// the first are no-ops.
func (r *Response) Release() {
	if r == nil || r.set == nil {
		return
	}
	if r.owner != nil {
		r.owner.outstanding.Add(-1)
		r.owner = nil
	}
	clear(r.set.m)
	fieldPool.Put(r.set)
	r.set = nil
}

// Err returns the bridge-reported error text, or "" on success.
func (r *Response) Err() string { return r.String("err") }

// ErrContains reports whether the bridge error text contains marker,
// e.g. "{note-noexist}".
func (r *Response) ErrContains(marker string) bool {
	return strings.Contains(r.Err(), marker)
}

// Has reports whether the response carries key.
func (r *Response) Has(key string) bool {
	_, ok := r.field(key)
	return ok
}

// String returns the string field key, "" when absent or not a string.
func (r *Response) String(key string) string {
	v, _ := r.field(key)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Int returns the numeric field key truncated to int64, 0 when absent.
func (r *Response) Int(key string) int64 {
	f, _ := r.field(key)
	switch v := f.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case float64:
		return int64(v)
	}
	return 0
}

// Bool returns the boolean field key, false when absent.
func (r *Response) Bool(key string) bool {
	v, _ := r.field(key)
	b, _ := v.(bool)
	return b
}

// Binary decodes the base64 field key. An absent field yields an empty slice.
func (r *Response) Binary(key string) ([]byte, error) {
	v, ok := r.field(key)
	if !ok {
		return []byte{}, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("note: field %q is not a string", key)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("note: field %q: %w", key, err)
	}
	return b, nil
}
