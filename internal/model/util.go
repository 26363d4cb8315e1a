package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type StringFloat64 float64

// UnmarshalJSON allows StringFloat64 to accept both string and float in JSON
func (s *StringFloat64) UnmarshalJSON(b []byte) error {
	// try number
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*s = StringFloat64(f)
		return nil
	}

	// try string
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("StringFloat64: cannot unmarshal %s", string(b))
	}

	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return fmt.Errorf("StringFloat64: cannot parse %q to float64", str)
	}
	*s = StringFloat64(f)
	return nil
}

// Value returns the float value, with nil treated as the zero default.
func (s *StringFloat64) Value() float64 {
	if s == nil {
		return 0
	}
	return float64(*s)
}
