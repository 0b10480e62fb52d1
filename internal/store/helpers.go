package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

// encodeJSON serializes an optional payload struct for storage; nil payloads
// store as NULL so absent and empty stay distinguishable.
func encodeJSON[T any](value *T) (any, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func decodeJSON[T any](raw sql.NullString, label string) (*T, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	value := new(T)
	if err := json.Unmarshal([]byte(raw.String), value); err != nil {
		return nil, fmt.Errorf("decode %s: %w", label, err)
	}
	return value, nil
}

func encodeJSONSlice[T any](values []T) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func decodeJSONSlice[T any](raw sql.NullString, label string) ([]T, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var values []T
	if err := json.Unmarshal([]byte(raw.String), &values); err != nil {
		return nil, fmt.Errorf("decode %s: %w", label, err)
	}
	return values, nil
}

func encodeJSONMap[V any](values map[string]V) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func decodeJSONMap[V any](raw sql.NullString, label string) (map[string]V, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var values map[string]V
	if err := json.Unmarshal([]byte(raw.String), &values); err != nil {
		return nil, fmt.Errorf("decode %s: %w", label, err)
	}
	return values, nil
}
