// Package scoring computes the weighted contribution leaderboard. It is a
// pure function over pre-aggregated per-author facts; it performs no I/O.
package scoring

import (
	"math"
	"sort"
)

// Fact holds the aggregated metrics for a single author over a time
// window. Latency values are nil when the author has no defined value.
type Fact struct {
	Author             string   `json:"author"`
	MergedPRs          int      `json:"merged_prs"`
	ReviewsDone        int      `json:"reviews_done"`
	Approvals          int      `json:"approvals"`
	IssuesClosed       int      `json:"issues_closed"`
	BugsClosed         int      `json:"bugs_closed"`
	CIPassed           int      `json:"ci_passed"`
	CITotal            int      `json:"ci_total"`
	CrossReviews       int      `json:"cross_reviews"`
	AvgFirstReviewSecs *float64 `json:"avg_first_review_secs"`
	AvgMergeSecs       *float64 `json:"avg_merge_secs"`
	Commits            int      `json:"commits"`
	FilesChanged       int      `json:"files_changed"`
}

// CIPassRate returns passed/total, or 0 when the author has no CI facts.
func (f Fact) CIPassRate() float64 {
	if f.CITotal == 0 {
		return 0
	}
	return float64(f.CIPassed) / float64(f.CITotal)
}

// Weights assigns the relative importance of each metric. The default set
// sums to 1.0.
type Weights struct {
	MergedPRs        float64 `json:"merged_prs"`
	Reviews          float64 `json:"reviews"`
	Issues           float64 `json:"issues"`
	Commits          float64 `json:"commits"`
	Files            float64 `json:"files"`
	FirstReviewSpeed float64 `json:"first_review_speed"`
	MergeSpeed       float64 `json:"merge_speed"`
	CI               float64 `json:"ci"`
	CrossReviews     float64 `json:"cross_reviews"`
}

// DefaultWeights returns the standard weight assignment.
func DefaultWeights() Weights {
	return Weights{
		MergedPRs:        0.20,
		Reviews:          0.15,
		Issues:           0.10,
		Commits:          0.15,
		Files:            0.10,
		FirstReviewSpeed: 0.08,
		MergeSpeed:       0.07,
		CI:               0.10,
		CrossReviews:     0.05,
	}
}

// Entry is one leaderboard row: the composite score plus the raw metric
// breakdown it was computed from.
type Entry struct {
	Fact
	Score float64 `json:"score"`
}

// Score ranks authors by the weighted sum of their normalized metrics.
// Count-like metrics are divided by the maximum across all authors; an
// all-zero metric normalizes everyone to 0. Latency metrics reward lower
// values with 1 - v/max; authors with no defined latency score 0 on that
// axis. The result is sorted by descending score with lexicographic author
// order as the stable tie key, so identical input always yields identical
// output.
func Score(facts []Fact, w Weights) []Entry {
	byAuthor := make(map[string]Fact, len(facts))
	authors := make([]string, 0, len(facts))
	for _, f := range facts {
		if _, ok := byAuthor[f.Author]; !ok {
			authors = append(authors, f.Author)
		}
		byAuthor[f.Author] = f
	}
	sort.Strings(authors)

	merged := make(map[string]float64, len(authors))
	reviews := make(map[string]float64, len(authors))
	issues := make(map[string]float64, len(authors))
	commits := make(map[string]float64, len(authors))
	files := make(map[string]float64, len(authors))
	cross := make(map[string]float64, len(authors))
	ci := make(map[string]float64, len(authors))
	firstReview := make(map[string]*float64, len(authors))
	mergeTime := make(map[string]*float64, len(authors))

	for _, a := range authors {
		f := byAuthor[a]
		merged[a] = float64(f.MergedPRs)
		reviews[a] = float64(f.ReviewsDone)
		issues[a] = float64(f.IssuesClosed)
		commits[a] = float64(f.Commits)
		files[a] = float64(f.FilesChanged)
		cross[a] = float64(f.CrossReviews)
		ci[a] = f.CIPassRate()
		firstReview[a] = f.AvgFirstReviewSecs
		mergeTime[a] = f.AvgMergeSecs
	}

	nMerged := normalize(merged)
	nReviews := normalize(reviews)
	nIssues := normalize(issues)
	nCommits := normalize(commits)
	nFiles := normalize(files)
	nCross := normalize(cross)
	nCI := normalize(ci)
	nFirstReview := normalizeLatency(firstReview)
	nMergeTime := normalizeLatency(mergeTime)

	entries := make([]Entry, 0, len(authors))
	for _, a := range authors {
		score := 0.0
		score += w.MergedPRs * nMerged[a]
		score += w.Reviews * nReviews[a]
		score += w.Issues * nIssues[a]
		score += w.Commits * nCommits[a]
		score += w.Files * nFiles[a]
		score += w.FirstReviewSpeed * nFirstReview[a]
		score += w.MergeSpeed * nMergeTime[a]
		score += w.CI * nCI[a]
		score += w.CrossReviews * nCross[a]

		entries = append(entries, Entry{
			Fact:  byAuthor[a],
			Score: math.Round(score*100*100) / 100,
		})
	}

	// The pre-sort by author makes descending-score ordering stable and
	// deterministic for ties.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}

// normalize divides each value by the maximum. An all-zero map normalizes
// every author to 0.
func normalize(vals map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(vals))
	var max float64
	for _, v := range vals {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		for k := range vals {
			out[k] = 0
		}
		return out
	}
	for k, v := range vals {
		out[k] = v / max
	}
	return out
}

// normalizeLatency scores lower-is-better values as 1 - v/max among
// authors with a defined value. Undefined values score 0: the author stays
// on the leaderboard, penalized on this axis only.
func normalizeLatency(vals map[string]*float64) map[string]float64 {
	out := make(map[string]float64, len(vals))
	var max float64
	defined := 0
	for _, v := range vals {
		if v == nil {
			continue
		}
		defined++
		if *v > max {
			max = *v
		}
	}
	if defined == 0 {
		for k := range vals {
			out[k] = 0
		}
		return out
	}
	for k, v := range vals {
		switch {
		case v == nil:
			out[k] = 0
		case max == 0:
			out[k] = 1
		default:
			out[k] = 1 - *v/max
		}
	}
	return out
}
