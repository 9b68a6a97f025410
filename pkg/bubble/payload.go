package bubble

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// envelope is the Data API wrapper around every payload.
type envelope[T any] struct {
	Response T `json:"response"`
}

type recordPayload struct {
	ID      string   `json:"_id" validate:"required"`
	Name    string   `json:"name"`
	Website string   `json:"website"`
	Phone   string   `json:"phone"`
	Email   string   `json:"email"`
	Address Address  `json:"address"`
	Fields  fieldBag `json:"-"`
}

type listPayload struct {
	Cursor    int `json:"cursor"`
	Count     int `json:"count"`
	Remaining int `json:"remaining"`
	Results   []struct {
		ID string `json:"_id"`
	} `json:"results"`
}

// Address accepts both a plain string and a geographic address object
// ({"address": "...", "lat": 0, "lng": 0}).
type Address string

func (a *Address) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Address(s)
		return nil
	}

	var geo struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(data, &geo); err != nil {
		return err
	}
	*a = Address(geo.Address)
	return nil
}

// fieldBag keeps the raw fields of a thing so a configurable field name (the
// legacy id) can be read after decoding.
type fieldBag map[string]json.RawMessage

// String renders a scalar field as text. Numbers keep their literal form;
// anything else yields "".
func (f fieldBag) String(key string) string {
	raw, ok := f[key]
	if !ok {
		return ""
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
				return strconv.FormatInt(i, 10)
			}
			return n.String()
		}
	}
	return ""
}

func decodeRecord(body []byte) (*recordPayload, error) {
	var env envelope[json.RawMessage]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	var payload recordPayload
	if err := json.Unmarshal(env.Response, &payload); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.Response, &payload.Fields); err != nil {
		return nil, err
	}
	return &payload, nil
}
