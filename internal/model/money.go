package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Money is a currency amount. The API serializes decimals as strings
// ("1234.50") but some endpoints send plain numbers; both decode.
type Money float64

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(m), 'f', 2, 64)), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*m = 0
			return nil
		}
		data = []byte(s)
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", data)
	}
	*m = Money(f)
	return nil
}

func (m Money) String() string {
	return "R$ " + strconv.FormatFloat(float64(m), 'f', 2, 64)
}

// ParseMoney reads an amount typed by a user, accepting a decimal comma.
func ParseMoney(s string) (Money, error) {
	s = string(bytes.ReplaceAll([]byte(s), []byte(","), []byte(".")))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("amount must not be negative")
	}
	return Money(f), nil
}
