package events

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/echoface/pbevents/pkg/jsonx"
)

// IDFunc extracts the scoping id from the first argument of an emission.
// It reports false when the payload carries no usable id.
type IDFunc func(payload any) (string, bool)

// Catalog is the closed set of recognized event names and their id accessors.
// Build it at startup; it is read-only once handed to a Bus.
type Catalog struct {
	names    []string
	known    map[string]struct{}
	ids      map[string]IDFunc
	idSource map[string]string
}

// NewCatalog returns a catalog recognizing names, none of them id-scoped.
func NewCatalog(names ...string) *Catalog {
	c := &Catalog{
		known:    make(map[string]struct{}, len(names)),
		ids:      make(map[string]IDFunc),
		idSource: make(map[string]string),
	}
	for _, name := range names {
		c.add(name)
	}
	return c
}

func (c *Catalog) add(name string) {
	if _, ok := c.known[name]; ok || name == "" {
		return
	}
	c.known[name] = struct{}{}
	c.names = append(c.names, name)
}

// WithID scopes name with fn. Names outside the catalog are ignored.
func (c *Catalog) WithID(name string, fn IDFunc) *Catalog {
	if !c.Has(name) {
		return c
	}
	c.ids[name] = fn
	c.idSource[name] = "typed"
	return c
}

// WithPath scopes name by the dot path into its payload. Typed accessors, if
// given, are tried before the path lookup. Names outside the catalog are ignored.
func (c *Catalog) WithPath(name, path string, typed ...IDFunc) *Catalog {
	if !c.Has(name) {
		return c
	}
	fn := PathID(path)
	if len(typed) > 0 {
		fn = FirstID(append(typed, fn)...)
	}
	c.WithID(name, fn)
	c.idSource[name] = path
	return c
}

// Has reports whether name is a recognized event.
func (c *Catalog) Has(name string) bool {
	_, ok := c.known[name]
	return ok
}

// Names returns the recognized events in registration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// IDSources maps each id-scoped event to its path, or "typed" for accessors
// registered with WithID.
func (c *Catalog) IDSources() map[string]string {
	out := make(map[string]string, len(c.idSource))
	for k, v := range c.idSource {
		out[k] = v
	}
	return out
}

// ID extracts the id of payload for event. Events without an accessor never
// carry an id.
func (c *Catalog) ID(event string, payload any) (string, bool) {
	fn, ok := c.ids[event]
	if !ok || fn == nil {
		return "", false
	}
	return fn(payload)
}

// TypedID builds an accessor for payloads of type T or *T. Other payload
// types yield no id.
func TypedID[T any](fn func(T) string) IDFunc {
	return func(payload any) (string, bool) {
		var id string
		switch p := payload.(type) {
		case T:
			id = fn(p)
		case *T:
			if p == nil {
				return "", false
			}
			id = fn(*p)
		default:
			return "", false
		}
		return id, id != ""
	}
}

// FirstID tries each accessor in order and returns the first id found.
func FirstID(fns ...IDFunc) IDFunc {
	return func(payload any) (string, bool) {
		for _, fn := range fns {
			if id, ok := fn(payload); ok {
				return id, true
			}
		}
		return "", false
	}
}

// PathID builds an accessor that resolves a dot path ("a.b.c") in the payload.
// Decoded JSON maps are walked directly; raw JSON is queried as is; any other
// value is encoded to JSON first. Only scalar, non-empty values count as ids.
func PathID(path string) IDFunc {
	keys := strings.Split(path, ".")
	return func(payload any) (string, bool) {
		if path == "" {
			return "", false
		}
		return walk(payload, keys)
	}
}

func walk(v any, keys []string) (string, bool) {
	for i, key := range keys {
		switch node := v.(type) {
		case nil:
			return "", false
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return "", false
			}
			v = next
		case map[string]string:
			s, ok := node[key]
			if !ok || i != len(keys)-1 {
				return "", false
			}
			return s, s != ""
		default:
			return lookupJSON(node, keys[i:])
		}
	}
	return scalar(v)
}

func lookupJSON(v any, keys []string) (string, bool) {
	var data []byte
	switch raw := v.(type) {
	case json.RawMessage:
		data = raw
	case []byte:
		data = raw
	default:
		encoded, err := jsonx.JSONE(v)
		if err != nil {
			return "", false
		}
		data = encoded
	}

	res := gjson.GetBytes(data, strings.Join(keys, "."))
	switch res.Type {
	case gjson.String:
		return res.Str, res.Str != ""
	case gjson.Number:
		return number(res.Num)
	case gjson.True:
		return res.Raw, true
	default:
		return "", false
	}
}

// scalar formats a leaf value as an id. Empty strings, zero and false are
// falsy and never scope an emission.
func scalar(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, s != ""
	case bool:
		if !s {
			return "", false
		}
		return "true", true
	case int:
		return number(float64(s))
	case int64:
		if s == 0 {
			return "", false
		}
		return strconv.FormatInt(s, 10), true
	case float64:
		return number(s)
	case json.Number:
		f, err := s.Float64()
		if err != nil {
			return s.String(), s != ""
		}
		return number(f)
	default:
		return "", false
	}
}

func number(f float64) (string, bool) {
	if f == 0 || math.IsNaN(f) {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}
