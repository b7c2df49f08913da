package services

import "github.com/Odushhh/tech-support-chatbot/internal/core/domain"

// TrustPolicy scores how trustworthy a document is, in [0,1].
type TrustPolicy interface {
	Trust(doc *domain.Document) float64
}

// StackOverflowTrustPolicy favours accepted answers and vote score.
type StackOverflowTrustPolicy struct{}

// Trust scores a question.
func (StackOverflowTrustPolicy) Trust(doc *domain.Document) float64 {
	var t float64
	if doc.HasAcceptedAnswer() {
		t += 0.5
	}
	t += 0.3 * saturate(float64(doc.Score), 25)

	var best int
	for i := range doc.Comments {
		if doc.Comments[i].Score > best {
			best = doc.Comments[i].Score
		}
	}
	if len(doc.Comments) > 0 {
		t += 0.1 + 0.1*saturate(float64(best), 10)
	}
	return clamp01(t)
}

// GitHubTrustPolicy favours resolved issues with maintainer replies.
type GitHubTrustPolicy struct{}

// Trust scores an issue.
func (GitHubTrustPolicy) Trust(doc *domain.Document) float64 {
	var t float64
	if doc.Resolved {
		t += 0.45
	}
	if doc.HasMaintainerComment() {
		t += 0.35
	}
	t += 0.1 * saturate(float64(doc.Score), 10)
	t += 0.1 * saturate(float64(len(doc.Comments)), 5)
	return clamp01(t)
}

var trustPolicies = map[domain.Source]TrustPolicy{
	domain.SourceStackOverflow: StackOverflowTrustPolicy{},
	domain.SourceGitHub:        GitHubTrustPolicy{},
}

// ComputeTrust scores doc with the policy of its source. Unknown sources score zero.
func ComputeTrust(doc *domain.Document) float64 {
	policy, ok := trustPolicies[doc.Source]
	if !ok {
		return 0
	}
	return policy.Trust(doc)
}

// saturate maps x >= 0 onto [0,1), reaching one half at x == k. Negative x scores zero.
func saturate(x, k float64) float64 {
	if x <= 0 {
		return 0
	}
	return x / (x + k)
}
