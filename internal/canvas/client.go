package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Source supplies the raw course, assignment, group, comment and enrollment
// records the reporting core consumes. Implemented by Client; stubbed in tests.
type Source interface {
	ListCourses(ctx context.Context) ([]RawCourse, error)
	ListAssignments(ctx context.Context, courseID int64) ([]RawAssignment, error)
	ListAssignmentGroups(ctx context.Context, courseID int64) ([]RawAssignmentGroup, error)
	ListSubmissionComments(ctx context.Context, courseID, assignmentID, userID int64) ([]RawComment, error)
	ListEnrollments(ctx context.Context) ([]RawEnrollment, error)
}

// Client talks to the upstream LMS REST API. It performs no retries; a
// failed call aborts the report run (retry policy belongs to the caller's
// deployment, not here).
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient builds an API client for the given base URL and bearer token.
func NewClient(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "canvas_client").Logger(),
	}
}

// ListCourses returns the active enrollments with term and total-score data.
func (c *Client) ListCourses(ctx context.Context) ([]RawCourse, error) {
	query := url.Values{}
	query.Set("enrollment_state", "active")
	query.Add("include[]", "total_scores")
	query.Add("include[]", "term")

	var courses []RawCourse
	if err := c.getPaginated(ctx, "/api/v1/courses", query, &courses); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	return courses, nil
}

// ListAssignments returns a course's assignments with the student submission
// included, ordered by due date.
func (c *Client) ListAssignments(ctx context.Context, courseID int64) ([]RawAssignment, error) {
	query := url.Values{}
	query.Set("order_by", "due_at")
	query.Add("include[]", "submission")

	var assignments []RawAssignment
	path := fmt.Sprintf("/api/v1/courses/%d/assignments", courseID)
	if err := c.getPaginated(ctx, path, query, &assignments); err != nil {
		return nil, fmt.Errorf("list assignments for course %d: %w", courseID, err)
	}

	return assignments, nil
}

// ListAssignmentGroups returns a course's assignment groups and weights.
func (c *Client) ListAssignmentGroups(ctx context.Context, courseID int64) ([]RawAssignmentGroup, error) {
	var groups []RawAssignmentGroup
	path := fmt.Sprintf("/api/v1/courses/%d/assignment_groups", courseID)
	if err := c.getPaginated(ctx, path, nil, &groups); err != nil {
		return nil, fmt.Errorf("list assignment groups for course %d: %w", courseID, err)
	}

	return groups, nil
}

// ListSubmissionComments fetches the comments attached to one submission.
func (c *Client) ListSubmissionComments(ctx context.Context, courseID, assignmentID, userID int64) ([]RawComment, error) {
	query := url.Values{}
	query.Add("include[]", "submission_comments")

	var envelope rawCommentEnvelope
	path := fmt.Sprintf("/api/v1/courses/%d/assignments/%d/submissions/%d", courseID, assignmentID, userID)
	if err := c.getOne(ctx, path, query, &envelope); err != nil {
		return nil, fmt.Errorf("list submission comments for assignment %d: %w", assignmentID, err)
	}

	return envelope.SubmissionComments, nil
}

// ListEnrollments returns the user's enrollments with upstream-computed grades.
func (c *Client) ListEnrollments(ctx context.Context) ([]RawEnrollment, error) {
	query := url.Values{}
	query.Add("state[]", "current_and_concluded")

	var enrollments []RawEnrollment
	if err := c.getPaginated(ctx, "/api/v1/users/self/enrollments", query, &enrollments); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}

	return enrollments, nil
}

func (c *Client) getOne(ctx context.Context, path string, query url.Values, out interface{}) error {
	body, _, err := c.get(ctx, c.baseURL+path, query)
	if err != nil {
		return err
	}

	return json.Unmarshal(body, out)
}

// getPaginated follows Link rel="next" headers until the collection is
// exhausted, appending each page into out (a pointer to a slice).
func (c *Client) getPaginated(ctx context.Context, path string, query url.Values, out interface{}) error {
	next := c.baseURL + path
	if len(query) > 0 {
		next += "?" + query.Encode()
	}

	var pages []json.RawMessage
	for next != "" {
		body, links, err := c.get(ctx, next, nil)
		if err != nil {
			return err
		}

		var page []json.RawMessage
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("decode page: %w", err)
		}
		pages = append(pages, page...)
		next = links["next"]
	}

	merged, err := json.Marshal(pages)
	if err != nil {
		return err
	}

	return json.Unmarshal(merged, out)
}

func (c *Client) get(ctx context.Context, rawURL string, query url.Values) ([]byte, map[string]string, error) {
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	c.logger.Debug().
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("upstream request")

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("upstream returned status %d for %s", resp.StatusCode, rawURL)
	}

	return body, parseLinkHeader(resp.Header.Get("Link")), nil
}

// parseLinkHeader extracts rel -> URL pairs from an RFC 5988 Link header.
func parseLinkHeader(header string) map[string]string {
	links := map[string]string{}
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(strings.TrimSpace(part), ";")
		if len(segments) < 2 {
			continue
		}

		target := strings.Trim(strings.TrimSpace(segments[0]), "<>")
		for _, attr := range segments[1:] {
			attr = strings.TrimSpace(attr)
			if rel, ok := strings.CutPrefix(attr, `rel="`); ok {
				links[strings.TrimSuffix(rel, `"`)] = target
			}
		}
	}

	return links
}
