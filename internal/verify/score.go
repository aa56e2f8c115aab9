package verify

import "net/http"

// Score points.
const (
	pointsStatusOK        = 40
	pointsStatusReachable = 20
	pointsLinkFound       = 30
	pointsAnchorMatch     = 20
	pointsDofollow        = 10
	maxScore              = 100
)

// Score rates a verification result from 0 to 100.
func Score(r Result) int {
	score := 0
	switch {
	case r.StatusCode == http.StatusOK:
		score += pointsStatusOK
	case r.StatusCode > 0 && r.StatusCode < 400:
		score += pointsStatusReachable
	}
	// Anchor and rel points only count for a link that was found.
	if r.LinkFound {
		score += pointsLinkFound
		if r.AnchorMatches {
			score += pointsAnchorMatch
		}
		if r.Dofollow {
			score += pointsDofollow
		}
	}
	return min(score, maxScore)
}
