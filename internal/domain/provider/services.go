package provider

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// ServiceSeparator joins service ids in storage and is not allowed inside one.
const ServiceSeparator = ","

// ValidateServiceID rejects blank ids and ids holding the separator or control characters.
func ValidateServiceID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("service_id is required")
	}
	if strings.Contains(id, ServiceSeparator) {
		return fmt.Errorf("service_id %q must not contain %q", id, ServiceSeparator)
	}
	if strings.ContainsFunc(id, unicode.IsControl) {
		return fmt.Errorf("service_id %q must not contain control characters", id)
	}
	return nil
}

// NormalizeServiceIDs returns a sorted copy of ids without blanks or duplicates.
func NormalizeServiceIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func addService(ids []string, id string) []string {
	if i, found := slices.BinarySearch(ids, id); !found {
		out := make([]string, 0, len(ids)+1)
		out = append(out, ids[:i]...)
		out = append(out, id)
		return append(out, ids[i:]...)
	}
	return ids
}

func removeService(ids []string, id string) []string {
	i, found := slices.BinarySearch(ids, id)
	if !found {
		return ids
	}
	out := make([]string, 0, len(ids)-1)
	out = append(out, ids[:i]...)
	return append(out, ids[i+1:]...)
}
