package tier

import "testing"

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	free := p.LimitsFor(TierFree)
	if free.Generation.Unlimited || free.Generation.Value != 5 {
		t.Fatalf("free generation limit = %v, want 5", free.Generation)
	}
	if !free.AuxQuestions.Zero() {
		t.Fatalf("expected followup questions to be unavailable on free")
	}

	pro := p.LimitsFor(TierPro)
	if !pro.Generation.Unlimited {
		t.Fatalf("expected pro generation to be unlimited")
	}
	if !pro.AuxQuestions.Unlimited {
		t.Fatalf("expected pro followup questions to be unlimited")
	}
}

func TestPolicyUnknownTierFallsBackToFree(t *testing.T) {
	p := DefaultPolicy()
	if got := p.LimitsFor(Tier("enterprise")); got != p.LimitsFor(TierFree) {
		t.Fatalf("unknown tier limits = %+v, want free limits", got)
	}
}

func TestPolicyFromEnvOverrides(t *testing.T) {
	t.Setenv("TIER_FREE_GENERATE_CONTENT_LIMIT", "9")
	t.Setenv("TIER_BASIC_ASK_FOLLOWUP_QUESTION_LIMIT", "-1")

	p := PolicyFromEnv()
	if got := p.LimitFor(TierFree, ActionGenerateContent); got.Unlimited || got.Value != 9 {
		t.Fatalf("env override not applied, got %v", got)
	}
	if got := p.LimitFor(TierBasic, ActionAskFollowup); !got.Unlimited {
		t.Fatalf("expected -1 to mean unlimited, got %v", got)
	}
	// Untouched entries keep their defaults.
	if got := p.LimitFor(TierBasic, ActionGenerateContent); got.Value != 200 {
		t.Fatalf("default basic generation limit = %v, want 200", got)
	}
}

func TestLimitsFor(t *testing.T) {
	ls := Limits{
		Generation:   LimitOf(1),
		StorageBytes: LimitOf(2),
		AuxQuestions: LimitOf(3),
	}
	if ls.For(ActionGenerateContent).Value != 1 ||
		ls.For(ActionUseStorage).Value != 2 ||
		ls.For(ActionAskFollowup).Value != 3 {
		t.Fatalf("Limits.For routed actions incorrectly: %+v", ls)
	}
}
