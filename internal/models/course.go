package models

import (
	"strings"
	"time"

	"github.com/gradewatch/gradewatch-api/internal/canvas"
	"github.com/gradewatch/gradewatch-api/internal/config"
)

// Course is one enrollment. A course is valid only when its raw title
// resolves against the graded-subject table; everything else (advisory
// periods, counseling blocks) is excluded from scoring and reporting.
type Course struct {
	ID        int64
	ShortName string
	FullName  string
	IsHonors  bool
	Term      string
	Valid     bool

	termEnd *time.Time
	groups  []AssignmentGroup
}

// NewCourse wraps one raw course record, resolving its short display name
// against the injected subject table. First matching entry wins; tokens
// match on word boundaries so "PE" cannot hide inside another word.
func NewCourse(raw canvas.RawCourse, subjects []config.Subject) *Course {
	course := &Course{
		ID:       raw.ID,
		FullName: raw.Name,
		IsHonors: strings.Contains(raw.Name, "Honors"),
		Term:     raw.Term.Name,
	}

	for _, subject := range subjects {
		if containsToken(raw.Name, subject.Token) {
			course.ShortName = subject.ShortName
			course.Valid = true
			break
		}
	}

	if raw.Term.EndAt != nil {
		if end, err := time.Parse(time.RFC3339, *raw.Term.EndAt); err == nil {
			course.termEnd = &end
		}
	}

	return course
}

// IsCurrent reports whether the course term is still running. A course with
// no term end date is treated as not current.
func (c *Course) IsCurrent(date time.Time) bool {
	if c.termEnd == nil {
		return false
	}

	return c.termEnd.After(date)
}

// SetGroups installs the course's assignment groups, dropping the buckets
// that never count toward a grade (attendance, imports, extra credit,
// finals placeholders).
func (c *Course) SetGroups(raw []canvas.RawAssignmentGroup) {
	groups := make([]AssignmentGroup, 0, len(raw))
	for _, r := range raw {
		group := NewAssignmentGroup(r)
		if group.Counted() {
			groups = append(groups, group)
		}
	}

	c.groups = groups
}

// AssignmentGroups returns the counted groups visible to the calculator.
func (c *Course) AssignmentGroups() []AssignmentGroup {
	return c.groups
}

// containsToken reports whether title contains token as a whole word:
// neither neighbor may be a letter or digit. Substring matching alone would
// let short subjects match inside unrelated words.
func containsToken(title, token string) bool {
	if token == "" {
		return false
	}

	for start := 0; ; {
		i := strings.Index(title[start:], token)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(token)

		beforeOK := i == 0 || !isWordChar(rune(title[i-1]))
		afterOK := end == len(title) || !isWordChar(rune(title[end]))
		if beforeOK && afterOK {
			return true
		}

		start = i + 1
	}
}

func isWordChar(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
