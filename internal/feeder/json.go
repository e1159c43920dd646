package feeder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// JSONFeeder reads records from a JSON file containing an array of objects,
// or a single object treated as a one-record dataset.
// It provides records in round-robin order and is safe for concurrent access.
type JSONFeeder struct {
	dataset
}

// NewJSONFeeder creates a new JSON feeder from the given file path.
func NewJSONFeeder(path string) (*JSONFeeder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}

	var rawRecords []map[string]interface{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var single map[string]interface{}
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
		rawRecords = append(rawRecords, single)
	} else if err := json.Unmarshal(trimmed, &rawRecords); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	if len(rawRecords) == 0 {
		return nil, fmt.Errorf("JSON file contains empty array")
	}

	records := make([]Record, 0, len(rawRecords))
	for i, rawRecord := range rawRecords {
		record := make(Record, len(rawRecord))
		for key, value := range rawRecord {
			record[key] = stringify(value)
		}
		if len(record) == 0 {
			return nil, fmt.Errorf("record %d is empty", i)
		}
		records = append(records, record)
	}

	return &JSONFeeder{dataset: dataset{records: records}}, nil
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}
