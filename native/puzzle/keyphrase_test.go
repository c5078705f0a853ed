package puzzle

import "testing"

func TestSanitizeKeyphrase(t *testing.T) {
	cases := map[string]string{
		"Banana Split":      "bananasplit",
		"  banana\tsplit\n": "bananasplit",
		"BANANA SPLIT":      "bananasplit",
		"Crème Brûlée":      "crèmebrûlée",
		"":                  "",
		" \t\r\n":           "",
		"ＢＡＮＡＮＡ\u00a0split": "bananasplit",
	}
	for input, want := range cases {
		if got := SanitizeKeyphrase(input); got != want {
			t.Fatalf("SanitizeKeyphrase(%q) = %q, want %q", input, got, want)
		}
	}
	if HashKeyphrase("Banana Split") != HashKeyphrase("bananasplit") {
		t.Fatalf("equivalent keyphrases must hash identically")
	}
	if HashKeyphrase("banana split") == HashKeyphrase("banana splits") {
		t.Fatalf("distinct keyphrases must not collide")
	}
}

func TestSanitizeKeyphraseFoldsCanonicalForms(t *testing.T) {
	composed := "Caf\u00e9 Cr\u00e8me"
	decomposed := "Cafe\u0301 Cre\u0300me"
	if composed == decomposed {
		t.Fatalf("test inputs must differ byte-wise")
	}
	if got, want := SanitizeKeyphrase(decomposed), SanitizeKeyphrase(composed); got != want {
		t.Fatalf("SanitizeKeyphrase(%q) = %q, want %q", decomposed, got, want)
	}
	if SanitizeKeyphrase(composed) != "caf\u00e9cr\u00e8me" {
		t.Fatalf("unexpected canonical form %q", SanitizeKeyphrase(composed))
	}
	if HashKeyphrase(composed) != HashKeyphrase(decomposed) {
		t.Fatalf("canonically equivalent keyphrases must hash identically")
	}
}
