// Package quota decides whether a user's plan allows another question on a
// document, another upload, or a deletion.
package quota

import "fmt"

type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Limits holds per-tier allowances.
type Limits struct {
	FreeQuestions int
	ProQuestions  int
	FreeDocuments int
	ProDocuments  int
}

// DefaultLimits are the published plan allowances.
var DefaultLimits = Limits{
	FreeQuestions: 3,
	ProQuestions:  100,
	FreeDocuments: 3,
	ProDocuments:  30,
}

// Decision is the outcome of a check. A denial is a value, not an error.
type Decision struct {
	Allowed bool
	Tier    Tier
	Limit   int
	Reason  string
}

type Gate struct {
	limits Limits
}

func NewGate(limits Limits) *Gate {
	return &Gate{limits: limits}
}

func TierFor(hasActiveMembership bool) Tier {
	if hasActiveMembership {
		return TierPro
	}
	return TierFree
}

// CheckQuestion is evaluated against the number of human messages already in
// the document's history, before the pending question is appended.
func (g *Gate) CheckQuestion(messageCount int, hasActiveMembership bool) Decision {
	tier := TierFor(hasActiveMembership)
	limit := g.QuestionLimit(hasActiveMembership)

	d := Decision{Allowed: clamp(messageCount) < limit, Tier: tier, Limit: limit}
	if !d.Allowed {
		if tier == TierPro {
			d.Reason = fmt.Sprintf("You have reached the PRO plan limit of %d questions per document!", limit)
		} else {
			d.Reason = fmt.Sprintf("You've reached the free plan limit of %d questions per document. Upgrade to PRO to ask more questions!", limit)
		}
	}
	return d
}

// CheckUpload is evaluated against the number of documents the user owns.
func (g *Gate) CheckUpload(documentCount int, hasActiveMembership bool) Decision {
	tier := TierFor(hasActiveMembership)
	limit := g.DocumentLimit(hasActiveMembership)

	d := Decision{Allowed: clamp(documentCount) < limit, Tier: tier, Limit: limit}
	if !d.Allowed {
		if tier == TierPro {
			d.Reason = fmt.Sprintf("You have reached the PRO plan limit of %d documents!", limit)
		} else {
			d.Reason = fmt.Sprintf("You've reached the free plan limit of %d documents. Upgrade to PRO to upload more!", limit)
		}
	}
	return d
}

// CanDelete reports whether the plan includes deleting documents.
func (g *Gate) CanDelete(hasActiveMembership bool) Decision {
	tier := TierFor(hasActiveMembership)
	if tier == TierPro {
		return Decision{Allowed: true, Tier: tier}
	}
	return Decision{Tier: tier, Reason: "Deleting documents is a PRO feature. Upgrade to PRO to delete documents!"}
}

func (g *Gate) QuestionLimit(hasActiveMembership bool) int {
	if hasActiveMembership {
		return g.limits.ProQuestions
	}
	return g.limits.FreeQuestions
}

func (g *Gate) DocumentLimit(hasActiveMembership bool) int {
	if hasActiveMembership {
		return g.limits.ProDocuments
	}
	return g.limits.FreeDocuments
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
