package verifier

import "testing"

func TestSwitchFlagsHas(t *testing.T) {
	f := DisableScript | DisableDaoHeader
	if !f.Has(DisableScript) {
		t.Fatalf("expected DisableScript set")
	}
	if !f.Has(DisableDaoHeader) {
		t.Fatalf("expected DisableDaoHeader set")
	}
	if f.Has(DisableEpoch) {
		t.Fatalf("expected DisableEpoch unset")
	}
	if f.Has(DisableScript | DisableEpoch) {
		t.Fatalf("expected combined want with an unset bit to report false")
	}
}

func TestSwitchFlagsZeroValueDisablesNothing(t *testing.T) {
	var f SwitchFlags
	if f.Has(DisableScript) || f.Has(DisableAll) {
		t.Fatalf("expected zero value to disable nothing")
	}
}

func TestDisableAllIsDistinctBit(t *testing.T) {
	if !DisableAll.Has(DisableAll) {
		t.Fatalf("expected DisableAll to report itself set")
	}
	if DisableAll.Has(DisableScript) {
		t.Fatalf("DisableAll should not imply the other individual bits are set")
	}
}
