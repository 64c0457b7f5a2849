package persona

import "testing"

func TestLookupKnown(t *testing.T) {
	p := Lookup("tutor")
	if p.ID != "tutor" {
		t.Fatalf("ID=%q, want tutor", p.ID)
	}
	if p.Instruction == "" {
		t.Fatal("empty instruction")
	}
}

func TestLookupFallsBackToDefault(t *testing.T) {
	for _, id := range []string{"", "  ", "does-not-exist"} {
		p := Lookup(id)
		if p.ID != DefaultID {
			t.Fatalf("Lookup(%q).ID=%q, want %q", id, p.ID, DefaultID)
		}
	}
}

func TestIDsContainDefault(t *testing.T) {
	found := false
	for _, id := range IDs() {
		if id == DefaultID {
			found = true
		}
	}
	if !found {
		t.Fatalf("IDs()=%v missing default persona", IDs())
	}
}
