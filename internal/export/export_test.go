package export

import (
	"strings"
	"testing"

	"grimoire/api/internal/monster"
)

func TestAbilityModifier(t *testing.T) {
	tests := []struct {
		score    int
		expected string
	}{
		{1, "-5"},
		{7, "-2"},
		{8, "-1"},
		{9, "-1"},
		{10, "+0"},
		{11, "+0"},
		{12, "+1"},
		{18, "+4"},
		{30, "+10"},
	}
	for _, tt := range tests {
		if got := AbilityModifier(tt.score); got != tt.expected {
			t.Errorf("AbilityModifier(%d) = %s, want %s", tt.score, got, tt.expected)
		}
	}
}

func TestRenderStatblockHTML(t *testing.T) {
	m := monster.Monster{
		Type:      "Large dragon, chaotic evil",
		Challenge: "10",
		Abilities: monster.Abilities{Str: 23, Dex: 10, Con: 21, Int: 14, Wis: 13, Cha: 17},
		AC:        monster.Stat{Value: 18, Notes: "natural armor"},
		HP:        monster.Stat{Value: 184, Notes: "16d12+80"},
		Speed:     []string{"40 ft.", "fly 80 ft."},
		Senses:    []string{"blindsight 30 ft.", "darkvision 120 ft."},
		Traits: []monster.FeatureEntry{
			{Name: "Amphibious", Content: "The dragon can breathe air and water."},
		},
		Actions: []monster.FeatureEntry{
			{Name: "Acid Breath", Content: "The dragon exhales acid.", Usage: "Recharge 5-6"},
		},
	}

	html, err := RenderStatblockHTML(TemplateData{Name: "Adult Black Dragon", Monster: m})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{
		"Adult Black Dragon",
		"Large dragon, chaotic evil",
		"18 (natural armor)",
		"184 (16d12+80)",
		"40 ft., fly 80 ft.",
		"23 (+6)",
		"Amphibious",
		"Acid Breath",
		"(Recharge 5-6)",
		"Actions",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered statblock missing %q", want)
		}
	}

	// Empty sections must not render their headers.
	if strings.Contains(html, "Legendary Actions") {
		t.Error("empty legendary actions section rendered")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Adult Black Dragon", "Adult-Black-Dragon"},
		{"Gnoll (Pack Lord)", "Gnoll-Pack-Lord"},
		{"", "statblock"},
		{"///", "statblock"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.expected {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}
