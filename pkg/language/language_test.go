package language

import "testing"

func TestClassify(t *testing.T) {
	testCases := []struct {
		input       string
		expected    Language
		description string
	}{
		{"", English, "empty input defaults"},
		{"hello", English, "plain latin"},
		{"Hello, World! 123", English, "latin with digits and punctuation"},
		{"こんにちは", Japanese, "hiragana"},
		{"カタカナ", Japanese, "katakana"},
		{"ｶﾀｶﾅ", Japanese, "halfwidth katakana"},
		{"日本語", Japanese, "kanji"},
		{"漢字とhiragana", Japanese, "mixed kanji and latin"},
		{"hello こんにちは", Japanese, "single japanese run flips classification"},
		{"1234 !?", English, "no letters at all"},
		{"résumé", English, "accented latin"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			if got := Classify(tc.input); got != tc.expected {
				t.Errorf("Classify(%q) = %v, want %v", tc.input, got, tc.expected)
			}
		})
	}
}

func TestDistribute(t *testing.T) {
	testCases := []struct {
		input       string
		expected    Distribution
		description string
	}{
		{"", Distribution{}, "empty"},
		{"abc", Distribution{Latin: 3}, "latin only"},
		{"ひらgana!", Distribution{TargetScript: 2, Latin: 4, Other: 1}, "mixed scripts"},
		{"東京テレビ", Distribution{TargetScript: 5}, "kanji and katakana"},
		{"タワー", Distribution{TargetScript: 2, Other: 1}, "prolonged sound mark is script-neutral"},
		{"12 34", Distribution{Other: 5}, "digits and space"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			if got := Distribute(tc.input); got != tc.expected {
				t.Errorf("Distribute(%q) = %+v, want %+v", tc.input, got, tc.expected)
			}
		})
	}
}

func TestShouldSwitch(t *testing.T) {
	if ShouldSwitch(English, "hello") {
		t.Error("latin input should not leave English")
	}
	if !ShouldSwitch(English, "こんにちは") {
		t.Error("hiragana input should leave English")
	}
	if ShouldSwitch(Japanese, "日本") {
		t.Error("kanji input should stay Japanese")
	}
	if !ShouldSwitch(Japanese, "hello") {
		t.Error("latin input should leave Japanese")
	}
	if ShouldSwitch(English, "") {
		t.Error("empty input classifies to the default and must not switch")
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, l := range []Language{English, Japanese} {
		got, ok := Parse(l.String())
		if !ok || got != l {
			t.Errorf("Parse(%q) = %v, %v; want %v, true", l.String(), got, ok, l)
		}
	}
	if _, ok := Parse("klingon"); ok {
		t.Error("unknown code must not parse")
	}
}
