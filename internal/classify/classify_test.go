package classify

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"technology", "New software update brings cloud sync to the desktop app", Technology},
		{"business", "Company revenue beats estimates as investor confidence lifts the stock market", Business},
		{"sports", "Football team wins the championship after a tense final match", Sports},
		{"health", "Hospital trial shows new vaccine treatment helps patient recovery", Health},
		{"science", "Physics laboratory experiment confirms a decades-old discovery", Science},
		{"entertainment", "Singer announces new album and world concert dates", Entertainment},
		{"no keywords", "Local council votes on new bus timetable", General},
		{"case insensitive", "CLOUD SOFTWARE", Technology},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.text); got != tt.expected {
				t.Errorf("Expected %s, got %s for %q", tt.expected, got, tt.text)
			}
		})
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	for _, text := range []string{"", "   "} {
		if got := Classify(text); got != General {
			t.Errorf("Expected %s for empty input, got %s", General, got)
		}
	}
}

func TestClassifyTieGoesToEarlierCategory(t *testing.T) {
	// "startup" is listed under both technology and business: one hit each
	if got := Classify("startup"); got != Technology {
		t.Errorf("Expected tie to resolve to %s, got %s", Technology, got)
	}

	// one business hit and one sports hit
	if got := Classify("investor team"); got != Business {
		t.Errorf("Expected tie to resolve to %s, got %s", Business, got)
	}
}

func TestClassifyCountsEachKeywordOnce(t *testing.T) {
	// "film film film" is one entertainment keyword; "doctor" + "patient" is two health keywords
	if got := Classify("film film film doctor patient"); got != Health {
		t.Errorf("Expected %s, got %s", Health, got)
	}
}

func TestCategoriesOrder(t *testing.T) {
	want := []string{"technology", "business", "sports", "health", "science", "entertainment"}
	got := Categories()
	if len(got) != len(want) {
		t.Fatalf("Expected %d categories, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
