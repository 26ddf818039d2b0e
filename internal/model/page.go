package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Page is the paginated list envelope used when pagination is enabled on
// the server.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// HasNext reports whether another page follows.
func (p *Page[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// DecodePage accepts either a bare JSON array, returned as a single
// complete page, or a Page envelope. Anything else is an empty page.
func DecodePage[T any](data []byte) (*Page[T], error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &Page[T]{Results: []T{}}, nil
	}

	switch data[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		if items == nil {
			items = []T{}
		}
		return &Page[T]{Count: len(items), Results: items}, nil
	case '{':
		var page Page[T]
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("decode page: %w", err)
		}
		if page.Results == nil {
			page.Results = []T{}
		}
		return &page, nil
	default:
		return &Page[T]{Results: []T{}}, nil
	}
}

// DecodeList is DecodePage keeping only the results.
func DecodeList[T any](data []byte) ([]T, error) {
	page, err := DecodePage[T](data)
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}
