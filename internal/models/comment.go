package models

import (
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/gradewatch/gradewatch-api/internal/canvas"
)

var commentPolicy = bluemonday.StrictPolicy()

// Comment is one sanitized submission comment. Author keeps the first name
// only, matching how teachers sign comments upstream.
type Comment struct {
	Author string
	Date   time.Time
	Text   string
}

// NewComment converts a raw comment, stripping any HTML from the body and
// flattening newlines.
func NewComment(raw canvas.RawComment) (Comment, error) {
	date, err := NormalizeDate(raw.CreatedAt)
	if err != nil {
		return Comment{}, err
	}

	author := raw.AuthorName
	if fields := strings.Fields(author); len(fields) > 0 {
		author = fields[0]
	}

	text := commentPolicy.Sanitize(raw.Comment)
	text = strings.ReplaceAll(text, "\n", " ")

	return Comment{
		Author: author,
		Date:   date,
		Text:   strings.TrimSpace(text),
	}, nil
}
