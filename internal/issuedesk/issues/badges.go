package issues

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

var (
	knownStatuses   = sets.New[string]("open", "in-progress", "resolved", "closed")
	knownPriorities = sets.New[string]("low", "medium", "high", "critical")
)

// StatusClass normalizes a status for styling, e.g. "In Progress" becomes "in-progress".
// Unknown statuses yield an empty class.
func StatusClass(status string) string {
	class := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(status)), " ", "-")
	if !knownStatuses.Has(class) {
		return ""
	}
	return class
}

// PriorityClass normalizes a priority for styling. Unknown priorities yield an empty class.
func PriorityClass(priority string) string {
	class := strings.ToLower(strings.TrimSpace(priority))
	if !knownPriorities.Has(class) {
		return ""
	}
	return class
}
