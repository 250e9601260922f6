package tier

import "strings"

type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// Normalize maps arbitrary input to one of the known tiers, defaulting to
// free for anything unrecognized.
func Normalize(tier string) Tier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case string(TierBasic):
		return TierBasic
	case string(TierPro):
		return TierPro
	default:
		return TierFree
	}
}

// IsKnown reports whether the input names one of the closed tier set.
func IsKnown(tier string) bool {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case string(TierFree), string(TierBasic), string(TierPro):
		return true
	default:
		return false
	}
}

func Rank(t Tier) int {
	switch t {
	case TierPro:
		return 2
	case TierBasic:
		return 1
	default:
		return 0
	}
}

type Action string

const (
	ActionGenerateContent Action = "generate_content"
	ActionUseStorage      Action = "use_storage"
	ActionAskFollowup     Action = "ask_followup_question"
)

// Actions returns the closed set of metered actions.
func Actions() []Action {
	return []Action{ActionGenerateContent, ActionUseStorage, ActionAskFollowup}
}

// ParseAction validates an action identifier from an API request.
func ParseAction(action string) (Action, bool) {
	switch Action(strings.ToLower(strings.TrimSpace(action))) {
	case ActionGenerateContent:
		return ActionGenerateContent, true
	case ActionUseStorage:
		return ActionUseStorage, true
	case ActionAskFollowup:
		return ActionAskFollowup, true
	default:
		return "", false
	}
}
