package types

import (
	"encoding/json"
	"fmt"
)

// NumberOrString unmarshals a JSON field that clients send either as a number
// or as a string (the role "Type" field, mostly) and exposes it as a string.
type NumberOrString struct {
	value string
}

func NewNumberOrString(s string) NumberOrString {
	return NumberOrString{value: s}
}

func (n *NumberOrString) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		n.value = asString
		return nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err == nil {
		n.value = asNumber.String()
		return nil
	}
	return fmt.Errorf("value %s is neither a number nor a string", string(data))
}

func (n NumberOrString) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.value)
}

func (n NumberOrString) String() string {
	return n.value
}
