package utils

import (
	"encoding/json"
	"fmt"
)

// ConvertStruct converts data to T through its JSON form. Fields are matched
// by their json names so both types must agree on them.
func ConvertStruct[O any, T any](data O) (T, error) {
	var result T

	b, err := json.Marshal(data)
	if err != nil {
		return result, fmt.Errorf("failed to encode %T: %w", data, err)
	}

	err = json.Unmarshal(b, &result)
	if err != nil {
		return result, fmt.Errorf("failed to convert %T to %T: %w", data, result, err)
	}

	return result, nil
}
