package common

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Contains reports whether item is present in slice.
func Contains[T comparable](slice []T, item T) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}

	return false
}

// ValidatePath enforces the path invariant of spec.md's Change model: absolute,
// '/'-separated, no empty segments, no '..' segments.
func ValidatePath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return NewValidationError("Change", "path must be absolute: "+path)
	}

	segments := strings.Split(path, "/")[1:]
	if len(segments) == 0 || (len(segments) == 1 && segments[0] == "") {
		return NewValidationError("Change", "path must not be empty")
	}

	for _, seg := range segments {
		if seg == "" || seg == ".." {
			return NewValidationError("Change", "path must not contain empty or '..' segments: "+path)
		}
	}

	return nil
}

// GenerateUUIDv7 returns a time-ordered UUID.
func GenerateUUIDv7() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// StructToJSONString marshals s to a canonical JSON string.
func StructToJSONString(s any) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	return string(b), nil
}
