package repair

import "testing"

func TestParseRule(t *testing.T) {
	tests := []struct {
		input   string
		want    Rule
		wantErr bool
	}{
		{"/Volumes/Old=/Volumes/New", Rule{From: "/Volumes/Old", To: "/Volumes/New"}, false},
		{" /Volumes/Old/ = /Users/me/Photos/ ", Rule{From: "/Volumes/Old", To: "/Users/me/Photos"}, false},
		{"/Volumes/Photo Drive=/Volumes/Photo Drive 2", Rule{From: "/Volumes/Photo Drive", To: "/Volumes/Photo Drive 2"}, false},
		{"/Volumes/Old", Rule{}, true},
		{"Old=/Volumes/New", Rule{}, true},
		{"/Volumes/Old=New", Rule{}, true},
		{"/=/Volumes/New", Rule{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRule(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRule(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRule(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRule_Apply(t *testing.T) {
	r := Rule{From: "/Volumes/Old", To: "/Volumes/New"}

	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"/Volumes/Old/a.jpg", "/Volumes/New/a.jpg", true},
		{"/volumes/old/Sub/a.jpg", "/Volumes/New/Sub/a.jpg", true},
		{"/Volumes/Older/a.jpg", "", false},
		{"/Users/me/a.jpg", "", false},
	}
	for _, tt := range tests {
		got, ok := r.Apply(tt.path)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Apply(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestMatch_LongestPrefixWins(t *testing.T) {
	rules := []Rule{
		{From: "/Volumes/Old", To: "/Volumes/New"},
		{From: "/Volumes/Old/Raw", To: "/Volumes/Archive/Raw"},
	}

	got, ok := match(rules, "/Volumes/Old/Raw/2019/a.dng")
	if !ok || got != rules[1] {
		t.Errorf("match() = %+v, %v; want %+v", got, ok, rules[1])
	}
	got, ok = match(rules, "/Volumes/Old/Edits/a.jpg")
	if !ok || got != rules[0] {
		t.Errorf("match() = %+v, %v; want %+v", got, ok, rules[0])
	}
	if _, ok := match(rules, "/Volumes/Other/a.jpg"); ok {
		t.Error("match() matched an unrelated path")
	}
}
