package rower

import (
	"bytes"
	"encoding/json"
)

// Metric is a rowing metric that may not be credible yet. An absent metric
// has Valid false and encodes as JSON null; it is never reported as zero.
type Metric struct {
	Value float64
	Valid bool
}

func present(v float64) Metric { return Metric{Value: v, Valid: true} }

// Get returns the value and whether it is present.
func (m Metric) Get() (float64, bool) { return m.Value, m.Valid }

// Or returns the value, or def when absent.
func (m Metric) Or(def float64) float64 {
	if !m.Valid {
		return def
	}
	return m.Value
}

// MarshalJSON implements json.Marshaler.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = Metric{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = present(v)
	return nil
}
