package types

import (
	"encoding/json"
	"fmt"
)

// SelectionType tags a ConnectorSelection.
type SelectionType string

const (
	SelectionPriority    SelectionType = "priority"
	SelectionVolumeSplit SelectionType = "volume_split"
)

// VolumeSplit routes a percentage of traffic to one connector.
type VolumeSplit struct {
	Connector string `json:"connector"`
	Split     uint8  `json:"split"`
}

// ConnectorSelection is the routing output: an ordered connector preference
// list, or a percentage split across connectors.
// Wire format: {"type": "priority", "data": ["stripe", "aci"]}.
type ConnectorSelection struct {
	Type        SelectionType
	Priority    []string
	VolumeSplit []VolumeSplit
}

// Priority returns an ordered preference selection.
func Priority(connectors ...string) ConnectorSelection {
	return ConnectorSelection{Type: SelectionPriority, Priority: connectors}
}

// Split returns a volume split selection.
func Split(splits ...VolumeSplit) ConnectorSelection {
	return ConnectorSelection{Type: SelectionVolumeSplit, VolumeSplit: splits}
}

// Connectors lists every connector named by the selection in declared order.
func (c ConnectorSelection) Connectors() []string {
	if c.Type == SelectionVolumeSplit {
		out := make([]string, 0, len(c.VolumeSplit))
		for _, vs := range c.VolumeSplit {
			out = append(out, vs.Connector)
		}
		return out
	}
	return c.Priority
}

// Validate checks the selection is non-empty and splits sum to 100.
func (c ConnectorSelection) Validate() error {
	switch c.Type {
	case SelectionPriority:
		if len(c.Priority) == 0 {
			return ErrEmptySelection
		}
	case SelectionVolumeSplit:
		if len(c.VolumeSplit) == 0 {
			return ErrEmptySelection
		}
		total := 0
		for _, vs := range c.VolumeSplit {
			total += int(vs.Split)
		}
		if total != 100 {
			return fmt.Errorf("%w: got %d", ErrInvalidSplit, total)
		}
	default:
		return fmt.Errorf("unknown selection type %q", c.Type)
	}
	return nil
}

type selectionWire struct {
	Type SelectionType   `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON implements json.Marshaler.
func (c ConnectorSelection) MarshalJSON() ([]byte, error) {
	var data any
	switch c.Type {
	case SelectionPriority:
		data = nonNil(c.Priority)
	case SelectionVolumeSplit:
		data = nonNil(c.VolumeSplit)
	default:
		return nil, fmt.Errorf("unknown selection type %q", c.Type)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(selectionWire{Type: c.Type, Data: raw})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ConnectorSelection) UnmarshalJSON(b []byte) error {
	var w selectionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := ConnectorSelection{Type: w.Type}
	switch w.Type {
	case SelectionPriority:
		if err := json.Unmarshal(w.Data, &out.Priority); err != nil {
			return fmt.Errorf("decode priority selection: %w", err)
		}
	case SelectionVolumeSplit:
		if err := json.Unmarshal(w.Data, &out.VolumeSplit); err != nil {
			return fmt.Errorf("decode volume split selection: %w", err)
		}
	default:
		return fmt.Errorf("unknown selection type %q", w.Type)
	}
	*c = out
	return nil
}
