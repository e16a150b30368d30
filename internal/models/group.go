package models

import (
	"strings"

	"github.com/gradewatch/gradewatch-api/internal/canvas"
)

// excludedGroupNames marks assignment groups that never count toward a
// course grade.
var excludedGroupNames = []string{"Attendance", "Imported Assignments", "Extra", "Final"}

// AssignmentGroup is a named weighted bucket of assignments within a course.
// Weight zero is the upstream sentinel for "unweighted": such courses grade
// on straight points, and the calculator normalizes the weight to 100.
type AssignmentGroup struct {
	ID     int64
	Name   string
	Weight float64
}

// NewAssignmentGroup wraps one raw assignment-group record.
func NewAssignmentGroup(raw canvas.RawAssignmentGroup) AssignmentGroup {
	return AssignmentGroup{
		ID:     raw.ID,
		Name:   raw.Name,
		Weight: raw.GroupWeight,
	}
}

// Counted reports whether the group participates in grading at all.
func (g AssignmentGroup) Counted() bool {
	for _, name := range excludedGroupNames {
		if strings.Contains(g.Name, name) {
			return false
		}
	}

	return true
}
