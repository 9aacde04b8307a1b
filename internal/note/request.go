// internal/note/request.go
package note

import (
	"encoding/base64"
	"encoding/json"
)

// Request is one bridge transaction under construction: a command name plus
// named fields. Builders return the request so calls can be chained.
type Request struct {
	cmd    string
	fields map[string]any
}

// NewRequest builds an empty request tagged with cmd.
func NewRequest(cmd string) *Request {
	return &Request{
		cmd:    cmd,
		fields: make(map[string]any),
	}
}

// Command returns the request command name.
func (r *Request) Command() string { return r.cmd }

func (r *Request) AddString(key, v string) *Request {
	r.fields[key] = v
	return r
}

func (r *Request) AddInt(key string, v int) *Request {
	r.fields[key] = v
	return r
}

func (r *Request) AddBool(key string, v bool) *Request {
	r.fields[key] = v
	return r
}

// AddBinary attaches opaque bytes, base64 encoded on the wire.
func (r *Request) AddBinary(key string, v []byte) *Request {
	r.fields[key] = base64.StdEncoding.EncodeToString(v)
	return r
}

// AddStrings attaches a JSON array of strings.
func (r *Request) AddStrings(key string, v ...string) *Request {
	arr := make([]string, len(v))
	copy(arr, v)
	r.fields[key] = arr
	return r
}

// MarshalJSON renders {"req":<cmd>, ...fields}.
func (r *Request) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.fields)+1)
	for k, v := range r.fields {
		m[k] = v
	}
	m["req"] = r.cmd
	return json.Marshal(m)
}
