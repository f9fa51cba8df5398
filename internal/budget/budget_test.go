package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateMessages(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{
		schema.UserMessage("hello world"), // 4 overhead + 1 (role) + 2 (content) = 7
		schema.UserMessage("hello world"),
	}
	got := EstimateMessages(msgs)
	// Each message: 4 overhead + Estimate("user")=1 + Estimate("hello world")=2 = 7
	// Two messages: 14
	if got != 14 {
		t.Errorf("EstimateMessages = %d, want 14", got)
	}
}

func Test_Truncate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		input     string
		maxTokens int
		want      string
		truncated bool
	}{
		{"fits", "abcdefgh", 2, "abcdefgh", false},
		{"cut", "abcdefghij", 2, "abcdefgh", true},
		{"zero budget", "abc", 0, "", true},
		{"empty", "", 0, "", false},
		// "é" is two bytes; the cut at byte 4 lands inside the second one.
		{"rune boundary", "abcéé", 1, "abc", true},
	}
	for _, tc := range cases {
		got, truncated := Truncate(tc.input, tc.maxTokens)
		if got != tc.want || truncated != tc.truncated {
			t.Errorf("%s: Truncate = (%q, %v), want (%q, %v)", tc.name, got, truncated, tc.want, tc.truncated)
		}
	}
}

func Test_Fit_TrimsLastMessage(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage(strings.Repeat("x", 400)),
	}
	// system: 4 + 1 + 1 = 6, user: 4 + 1 + 100 = 105.
	if !Fit(msgs, 56) {
		t.Fatal("expected the resume message to be trimmed")
	}
	if got := EstimateMessages(msgs); got > 56 {
		t.Errorf("estimate after Fit = %d, want <= 56", got)
	}
	if msgs[0].Content != "sys" {
		t.Errorf("system prompt changed: %q", msgs[0].Content)
	}
	if len(msgs[1].Content) != 180 {
		t.Errorf("want 180 chars kept, got %d", len(msgs[1].Content))
	}
}

func Test_Fit_NoTrimNeeded(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{schema.SystemMessage("sys"), schema.UserMessage("short resume")}
	if Fit(msgs, DefaultMaxContextTokens) {
		t.Error("Fit should not trim a small prompt")
	}
	if Fit(nil, 10) {
		t.Error("Fit on no messages should be a no-op")
	}
}
