package space

import (
	"encoding/json"
	"fmt"
)

// Transformations is an ordered list of per-column transformations with a
// self-describing JSON form, so revisions round-trip through persisted
// metadata without losing the variant.
type Transformations []Transformation

type transformationEnvelope struct {
	Kind        string   `json:"kind"`
	Min         float64  `json:"min,omitempty"`
	Max         float64  `json:"max,omitempty"`
	Breakpoints []string `json:"breakpoints,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (ts Transformations) MarshalJSON() ([]byte, error) {
	envelopes := make([]transformationEnvelope, len(ts))
	for i, t := range ts {
		switch x := t.(type) {
		case Linear:
			envelopes[i] = transformationEnvelope{Kind: KindLinear, Min: x.Min, Max: x.Max}
		case Histogram:
			envelopes[i] = transformationEnvelope{Kind: KindHistogram, Breakpoints: x.Breakpoints}
		default:
			return nil, fmt.Errorf("space: unknown transformation kind %q", t.Kind())
		}
	}
	return json.Marshal(envelopes)
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Transformations) UnmarshalJSON(data []byte) error {
	var envelopes []transformationEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return err
	}
	out := make(Transformations, len(envelopes))
	for i, e := range envelopes {
		switch e.Kind {
		case KindLinear:
			out[i] = Linear{Min: e.Min, Max: e.Max}
		case KindHistogram:
			out[i] = Histogram{Breakpoints: e.Breakpoints}
		default:
			return fmt.Errorf("space: unknown transformation kind %q", e.Kind)
		}
	}
	*ts = out
	return nil
}
