// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package grant

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrCorruptRecord = errors.New("grant: corrupt record")

// Record is the value stored per tab.
type Record struct {
	Granted bool `json:"granted"`
	// IssuedAt is epoch milliseconds.
	IssuedAt int64 `json:"issuedAt"`
}

func encodeRecord(r Record) ([]byte, error) {
	return json.Marshal(r)
}

func decodeRecord(data []byte) (Record, error) {
	var raw struct {
		Granted  *bool  `json:"granted"`
		IssuedAt *int64 `json:"issuedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if raw.Granted == nil || raw.IssuedAt == nil {
		return Record{}, fmt.Errorf("%w: missing field", ErrCorruptRecord)
	}
	return Record{Granted: *raw.Granted, IssuedAt: *raw.IssuedAt}, nil
}
