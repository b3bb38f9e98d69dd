package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/Simplici0/renoprice/internal/pricing"
)

// Modifiers decodes the complexity_modifiers object into (name, factor) pairs, keeping the
// order the keys appear in the document. A name given more than once takes its last value.
// Entries whose value is not a positive finite number are dropped.
type Modifiers []pricing.Modifier

// UnmarshalJSON implements json.Unmarshaler.
func (m *Modifiers) UnmarshalJSON(data []byte) error {
	*m = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode complexity modifiers: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode complexity modifiers: expected object")
	}

	type entry struct {
		name   string
		factor float64
		ok     bool
	}
	var entries []entry
	seen := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode complexity modifiers: %w", err)
		}
		name, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode complexity modifier %q: %w", name, err)
		}

		e := entry{name: name}
		if err := json.Unmarshal(raw, &e.factor); err == nil && pricing.ValidFactor(e.factor) {
			e.ok = true
		} else {
			zap.S().Named("api").Debugw("ignoring complexity modifier", "name", name, "value", string(raw))
		}

		// A repeated name keeps its first position and its last value.
		if i, ok := seen[name]; ok {
			entries[i] = e
			continue
		}
		seen[name] = len(entries)
		entries = append(entries, e)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode complexity modifiers: %w", err)
	}

	out := Modifiers{}
	for _, e := range entries {
		if e.ok {
			out = append(out, pricing.Modifier{Name: e.name, Factor: e.factor})
		}
	}
	*m = out
	return nil
}

// MarshalJSON writes the modifiers back as an object in order.
func (m Modifiers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, mod := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(mod.Name)
		if err != nil {
			return nil, err
		}
		factor, err := json.Marshal(mod.Factor)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(factor)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
