package models

import (
	"strconv"
	"strings"
)

const branchHandlePrefix = "branch-"

// Connection is a directed edge between two steps. SourceHandle names the
// branch of a condition step the edge leaves from and is empty otherwise.
type Connection struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// BranchHandle returns the handle of the branch at index.
func BranchHandle(index int) string {
	return branchHandlePrefix + strconv.Itoa(index)
}

// ParseBranchHandle extracts the branch index encoded in handle.
func ParseBranchHandle(handle string) (int, bool) {
	raw, ok := strings.CutPrefix(handle, branchHandlePrefix)
	if !ok || raw == "" {
		return 0, false
	}

	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return 0, false
	}

	return index, true
}

// ConnectionID derives the id of the edge identified by the triple. Step ids
// are escaped so they never contain the separator: the source ends at the
// first '-' and the target starts after the last one.
func ConnectionID(source, target, handle string) string {
	if handle == "" {
		return "e" + idEscaper.Replace(source) + "-" + idEscaper.Replace(target)
	}

	return "e" + idEscaper.Replace(source) + "-" + handle + "-" + idEscaper.Replace(target)
}

var idEscaper = strings.NewReplacer("~", "~0", "-", "~1")
