package model

import "strings"

// Action is the decision taken for one document during a sync pass
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionIgnore Action = "ignore"
)

// Outcome is the result of an upsert
type Outcome struct {
	Action Action
	Diff   []string // names of the fields that differed, sorted
}

// DiffString joins the differing field names for reporting
func (o Outcome) DiffString() string {
	return strings.Join(o.Diff, ", ")
}

// ConflictSet holds the titles that exist remotely but not locally
type ConflictSet struct {
	Posts []string
	Pages []string
}

// Empty reports whether neither collection has a conflict
func (c ConflictSet) Empty() bool {
	return len(c.Posts) == 0 && len(c.Pages) == 0
}

// Len returns the total number of conflicting titles
func (c ConflictSet) Len() int {
	return len(c.Posts) + len(c.Pages)
}
