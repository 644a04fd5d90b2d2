package domain

import (
	"fmt"

	"github.com/goccy/go-json"
)

type dailyParams struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

type weeklyParams struct {
	DayOfWeek int    `json:"day_of_week"`
	DayLabel  string `json:"day_label,omitempty"`
	Hour      int    `json:"hour"`
	Minute    int    `json:"minute"`
}

type monthlyParams struct {
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// EncodeParams serializes the kind-specific fields of a schedule
func EncodeParams(s Schedule) (Kind, []byte, error) {
	var v any
	switch s := s.(type) {
	case Daily:
		v = dailyParams{Hour: s.Hour, Minute: s.Minute}
	case Weekly:
		v = weeklyParams{DayOfWeek: int(s.Day), DayLabel: s.Label, Hour: s.Hour, Minute: s.Minute}
	case Monthly:
		v = monthlyParams{Day: s.Day, Hour: s.Hour, Minute: s.Minute}
	default:
		return "", nil, fmt.Errorf("%w: %T", ErrUnknownKind, s)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("marshal %s params: %w", s.Kind(), err)
	}
	return s.Kind(), data, nil
}

// DecodeParams rebuilds a schedule from its kind and params, validating
// the fields the same way the constructors do.
func DecodeParams(kind Kind, data []byte) (Schedule, error) {
	switch kind {
	case KindDaily:
		var p dailyParams
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal daily params: %w", err)
		}
		return NewDaily(p.Hour, p.Minute)
	case KindWeekly:
		var p weeklyParams
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal weekly params: %w", err)
		}
		return NewWeekly(Weekday(p.DayOfWeek), p.DayLabel, p.Hour, p.Minute)
	case KindMonthly:
		var p monthlyParams
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal monthly params: %w", err)
		}
		return NewMonthly(p.Day, p.Hour, p.Minute)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

type recurrenceJSON struct {
	Kind        Kind            `json:"kind"`
	Params      json.RawMessage `json:"params"`
	Description string          `json:"description"`
	Message     string          `json:"message"`
}

func (r Recurrence) MarshalJSON() ([]byte, error) {
	kind, params, err := EncodeParams(r.Schedule)
	if err != nil {
		return nil, err
	}
	return json.Marshal(recurrenceJSON{
		Kind:        kind,
		Params:      params,
		Description: r.Description(),
		Message:     r.Message,
	})
}

// UnmarshalJSON ignores the stored description; it is always re-derived from the schedule.
func (r *Recurrence) UnmarshalJSON(data []byte) error {
	var raw recurrenceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s, err := DecodeParams(raw.Kind, raw.Params)
	if err != nil {
		return err
	}
	rec, err := NewRecurrence(s, raw.Message)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}
