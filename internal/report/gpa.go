package report

// gradePointsEntry maps a minimum percentage to its GPA equivalents.
type gradePointsEntry struct {
	minScore   int
	weighted   float64
	unweighted float64
}

// gradePointsTable follows the school's published conversion; honors courses
// earn an extra half point on the weighted scale only.
var gradePointsTable = []gradePointsEntry{
	{97, 4.30, 4},
	{93, 4.00, 4},
	{90, 3.70, 4},
	{87, 3.30, 3},
	{83, 3.00, 3},
	{80, 2.70, 3},
	{77, 2.30, 2},
	{73, 2.00, 2},
	{70, 1.70, 2},
	{67, 1.30, 1},
	{63, 1.00, 1},
	{60, 0.70, 1},
	{0, 0.0, 0},
}

// PointsForScore converts a rounded percentage into weighted and unweighted
// GPA points.
func PointsForScore(score int, honors bool) (weighted, unweighted float64) {
	for _, entry := range gradePointsTable {
		if score >= entry.minScore {
			weighted = entry.weighted
			if honors {
				weighted += 0.5
			}
			return weighted, entry.unweighted
		}
	}

	return 0, 0
}
