package sink

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
)

// orderedRecord marshals as a JSON object whose keys follow the CSV header
// order. Missing trailing values are omitted.
type orderedRecord struct {
	keys   []string
	values []string
}

func (r orderedRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range r.values {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(r.keys[i])
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ExportJSON converts a day's CSV file into an indented JSON array of objects
// keyed by header field, written to jsonPath. Values stay strings, as read.
func ExportJSON(csvPath, jsonPath string) (int, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", csvPath, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", csvPath, err)
	}

	records := make([]orderedRecord, 0, len(rows))
	if len(rows) > 0 {
		header := rows[0]
		for _, row := range rows[1:] {
			rec := orderedRecord{keys: header, values: row}
			if len(row) > len(header) {
				rec.values = row[:len(header)]
			}
			records = append(records, rec)
		}
	}

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return 0, fmt.Errorf("encode json: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", jsonPath, err)
	}

	log.Printf("sink: exported %d records from %s to %s", len(records), csvPath, jsonPath)
	return len(records), nil
}
