package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one named text field of a raw document.
type Field struct {
	Key   string
	Value string
}

// Content is an ordered mapping of named text fields. It encodes as a JSON
// object and keeps insertion order across a round trip, so joining its values
// is deterministic.
type Content []Field

func NewContent(keysAndValues ...string) Content {
	var c Content
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		c = c.Set(keysAndValues[i], keysAndValues[i+1])
	}
	return c
}

// Set replaces the value of an existing key in place or appends a new field.
func (c Content) Set(key, value string) Content {
	for i := range c {
		if c[i].Key == key {
			c[i].Value = value
			return c
		}
	}
	return append(c, Field{Key: key, Value: value})
}

func (c Content) Get(key string) (string, bool) {
	for _, f := range c {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

func (c Content) Values() []string {
	out := make([]string, len(c))
	for i, f := range c {
		out[i] = f.Value
	}
	return out
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Content) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("content: expected object, got %v", tok)
	}

	out := Content{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("content: expected key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		out = out.Set(key, rawToText(raw))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// rawToText maps null to "" and keeps non-string scalars in their JSON form.
func rawToText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}
