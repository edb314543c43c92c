package tokenize

import (
	"reflect"
	"testing"
)

func TestJapaneseTokenize(t *testing.T) {
	jp, err := NewJapanese()
	if err != nil {
		t.Fatalf("failed to build tokenizer: %v", err)
	}

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "classic segmentation",
			input: "すもももももももものうち",
			want:  []string{"すもも", "も", "もも", "も", "もも", "の", "うち"},
		},
		{
			name:  "halfwidth katakana folds before analysis",
			input: "ﾃﾞｰﾀ",
			want:  []string{"データ"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := jp.Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestJapaneseReading(t *testing.T) {
	jp, err := NewJapanese()
	if err != nil {
		t.Fatalf("failed to build tokenizer: %v", err)
	}

	tests := []struct {
		name   string
		word   string
		want   string
		wantOK bool
	}{
		{
			name:   "kanji noun",
			word:   "東京",
			want:   "トウキョウ",
			wantOK: true,
		},
		{
			name:   "compound concatenates morpheme readings",
			word:   "日本語",
			want:   "ニホンゴ",
			wantOK: true,
		},
		{
			name:   "empty word",
			word:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := jp.Reading(tt.word)
			if ok != tt.wantOK {
				t.Fatalf("Reading(%q) ok = %v, want %v", tt.word, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Reading(%q) = %q, want %q", tt.word, got, tt.want)
			}
		})
	}
}
