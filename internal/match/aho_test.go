package match

import "testing"

func TestAutomatonFindsAnyPattern(t *testing.T) {
	auto, kept, err := Compile([]Pattern{
		{Label: "curl", Value: "curl"},
		{Label: "wget", Value: "Wget"},
		{Label: "bot", Value: "bot/"},
	}, Options{CaseInsensitive: true})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	cases := []struct {
		input string
		want  string
		found bool
	}{
		{"curl/8.4.0", "curl", true},
		{"GNU WGET/1.21", "wget", true},
		{"Mozilla/5.0 BadBot/1.0", "bot", true},
		{"Mozilla/5.0 (X11; Linux x86_64)", "", false},
		{"", "", false},
	}

	for _, tt := range cases {
		idx, ok := auto.Find(tt.input)
		if ok != tt.found {
			t.Fatalf("%q: expected found=%v got %v", tt.input, tt.found, ok)
		}
		if ok && kept[idx].Label != tt.want {
			t.Fatalf("%q: expected label %q got %q", tt.input, tt.want, kept[idx].Label)
		}
	}
}

func TestAutomatonOverlappingPatterns(t *testing.T) {
	auto, kept, err := Compile([]Pattern{
		{Label: "long", Value: "abcd"},
		{Label: "short", Value: "bc"},
	}, Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	idx, ok := auto.Find("xabcx")
	if !ok || kept[idx].Label != "short" {
		t.Fatalf("expected suffix pattern via failure link, got %v %v", idx, ok)
	}
}

func TestAutomatonCaseSensitive(t *testing.T) {
	auto, _, err := Compile([]Pattern{{Label: "x", Value: "Bot"}}, Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, ok := auto.Find("bot"); ok {
		t.Fatalf("expected case-sensitive miss")
	}
}

func TestCompileRejectsEmpty(t *testing.T) {
	if _, _, err := Compile([]Pattern{{Label: "empty", Value: ""}}, Options{}); err != ErrNoPatterns {
		t.Fatalf("expected ErrNoPatterns, got %v", err)
	}
}
