package report

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/gradewatch/gradewatch-api/internal/models"
)

// groupTotals carries the running aggregates for one assignment group.
type groupTotals struct {
	courseID int64
	name     string
	weight   float64
	score    float64
	maxScore float64
}

// WeightedScoreCalculator aggregates graded work per assignment group and
// projects course percentages and per-assignment possible gains. State is
// rebuilt from scratch on every Update call; nothing is incremental.
type WeightedScoreCalculator struct {
	groups          map[int64]*groupTotals
	courseGroups    map[int64][]int64
	equalWeighted   map[int64]bool
	weightingTotals map[int64]float64
	scoreTotals     map[int64]float64
	logger          zerolog.Logger
}

// NewWeightedScoreCalculator registers the assignment groups of every valid
// course. A configured weight of zero is the unweighted sentinel: the group
// weight becomes 100 and the course grades on straight points.
func NewWeightedScoreCalculator(courses map[int64]*models.Course, logger zerolog.Logger) *WeightedScoreCalculator {
	c := &WeightedScoreCalculator{
		groups:          map[int64]*groupTotals{},
		courseGroups:    map[int64][]int64{},
		equalWeighted:   map[int64]bool{},
		weightingTotals: map[int64]float64{},
		scoreTotals:     map[int64]float64{},
		logger:          logger.With().Str("component", "score_calculator").Logger(),
	}

	for _, course := range courses {
		if !course.Valid {
			continue
		}

		var groupIDs []int64
		for _, group := range course.AssignmentGroups() {
			weight := group.Weight
			if weight == 0 {
				weight = 100
				c.equalWeighted[course.ID] = true
			}

			c.groups[group.ID] = &groupTotals{
				courseID: course.ID,
				name:     group.Name,
				weight:   weight,
			}
			groupIDs = append(groupIDs, group.ID)

			c.logger.Debug().
				Str("course", course.ShortName).
				Str("group", group.Name).
				Float64("weight", weight).
				Msg("registered assignment group")
		}

		c.courseGroups[course.ID] = groupIDs
	}

	return c
}

// Update rebuilds every aggregate from the full assignment set, counting
// only graded assignments due strictly before asOf.
func (c *WeightedScoreCalculator) Update(assignments map[int64]*models.Assignment, asOf time.Time) {
	for _, totals := range c.groups {
		totals.score = 0
		totals.maxScore = 0
	}

	// First pass: accumulate graded work into its group and record which
	// groups have observed mass per course.
	activeGroups := map[int64][]int64{}
	for _, assignment := range assignments {
		if !assignment.IsValid() || !assignment.DueDate().Before(asOf) {
			continue
		}

		totals, known := c.groups[assignment.GroupID()]
		if !known || !assignment.IsGraded() {
			continue
		}

		courseID := assignment.CourseID()
		if !containsID(activeGroups[courseID], assignment.GroupID()) {
			activeGroups[courseID] = append(activeGroups[courseID], assignment.GroupID())
		}

		totals.maxScore += assignment.PointsPossible()
		totals.score += assignment.RawScore()
	}

	// Second pass: a course with a single active group is always graded
	// entirely by it, whatever the configured weight says. Equal-weighted
	// courses grade on straight points, so the combined observed maximum is
	// broadcast to every group.
	for courseID, active := range activeGroups {
		if len(active) == 1 {
			for _, groupID := range c.courseGroups[courseID] {
				c.groups[groupID].weight = 100
			}
			c.equalWeighted[courseID] = true
		}

		if c.equalWeighted[courseID] {
			var combined float64
			for _, groupID := range c.courseGroups[courseID] {
				combined += c.groups[groupID].maxScore
			}
			for _, groupID := range c.courseGroups[courseID] {
				c.groups[groupID].maxScore = combined
			}
		}

		var totalWeighting, totalScore float64
		for _, groupID := range active {
			totals := c.groups[groupID]
			if totals.maxScore <= 0 {
				continue
			}
			totalWeighting += totals.weight
			totalScore += totals.weight * 100 * totals.score / totals.maxScore
		}

		c.weightingTotals[courseID] = totalWeighting
		c.scoreTotals[courseID] = totalScore
	}
}

// Includes reports whether the assignment's group is known to the calculator.
func (c *WeightedScoreCalculator) Includes(assignment *models.Assignment) bool {
	_, ok := c.groups[assignment.GroupID()]
	return ok
}

// CoursePercentage returns the projected overall percentage for a course,
// or false when no graded mass has been observed for it.
func (c *WeightedScoreCalculator) CoursePercentage(courseID int64) (float64, bool) {
	weighting := c.weightingTotals[courseID]
	if weighting <= 0 {
		return 0, false
	}

	return c.scoreTotals[courseID] / weighting, true
}

// Gain projects how many percentage points the course grade would move if
// this one assignment were fully recovered or completed. Rounding happens
// once at the end; intermediate values stay fractional.
func (c *WeightedScoreCalculator) Gain(assignment *models.Assignment) int {
	totals, known := c.groups[assignment.GroupID()]
	if !known {
		c.logger.Debug().
			Str("course", assignment.CourseName()).
			Str("name", assignment.Name()).
			Int64("group_id", assignment.GroupID()).
			Msg("assignment group not known")
		return 0
	}

	courseID := assignment.CourseID()
	weighting := c.weightingTotals[courseID]

	if assignment.IsGraded() {
		if totals.maxScore <= 0 || weighting <= 0 {
			return 0
		}
		droppedPct := 100 * assignment.GradedPointsDropped() / totals.maxScore
		return roundHalfUp(totals.weight * droppedPct / weighting)
	}

	if totals.maxScore > 0 {
		if weighting <= 0 {
			return 0
		}
		points := assignment.PointsPossible()
		currentPct := 100 * totals.score / totals.maxScore
		newPct := 100 * (totals.score + points) / (totals.maxScore + points)
		return roundHalfUp((newPct - currentPct) * totals.weight / weighting)
	}

	// No graded mass in this group yet: blend the group in as a brand-new
	// weighted component at full credit.
	var currentScore float64
	if weighting > 0 {
		currentScore = c.scoreTotals[courseID] / weighting
	}
	newScore := (c.scoreTotals[courseID] + totals.weight*100) / (weighting + totals.weight)

	return roundHalfUp(newScore - currentScore)
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}

	return false
}
