package routing

import (
	"testing"

	"github.com/modelgate/modelgate/models"
)

func TestMatchRenameRule(t *testing.T) {
	tests := []struct {
		name            string
		model           string
		rules           models.RenameRules
		wantMatch       bool
		wantPattern     string
		wantReplacement string
	}{
		{
			name:            "exact match",
			model:           "claude-haiku-4-5",
			rules:           models.RenameRules{"claude-haiku-4-5": "claude-haiku-4-5-latest"},
			wantMatch:       true,
			wantPattern:     "claude-haiku-4-5",
			wantReplacement: "claude-haiku-4-5-latest",
		},
		{
			name:  "exact match beats wildcard",
			model: "claude-haiku-4-5",
			rules: models.RenameRules{
				"claude-haiku-*":   "wildcard-target",
				"claude-haiku-4-5": "exact-target",
			},
			wantMatch:       true,
			wantPattern:     "claude-haiku-4-5",
			wantReplacement: "exact-target",
		},
		{
			name:  "prefix wildcard match",
			model: "claude-haiku-4-5-20251001",
			rules: models.RenameRules{
				"claude-haiku-*": "claude-haiku-4-5",
			},
			wantMatch:       true,
			wantPattern:     "claude-haiku-*",
			wantReplacement: "claude-haiku-4-5",
		},
		{
			name:  "longest prefix wins",
			model: "claude-haiku-4-5-20251001",
			rules: models.RenameRules{
				"claude-*":           "claude-family",
				"claude-haiku-*":     "claude-haiku-4-5",
				"claude-haiku-4-5-*": "claude-haiku-4-5",
			},
			wantMatch:       true,
			wantPattern:     "claude-haiku-4-5-*",
			wantReplacement: "claude-haiku-4-5",
		},
		{
			name:  "catch-all is lowest priority",
			model: "claude-haiku-4-5-20251001",
			rules: models.RenameRules{
				"*":              "fallback-model",
				"claude-haiku-*": "claude-haiku-4-5",
			},
			wantMatch:       true,
			wantPattern:     "claude-haiku-*",
			wantReplacement: "claude-haiku-4-5",
		},
		{
			name:            "catch-all applies when nothing else matches",
			model:           "gpt-omega",
			rules:           models.RenameRules{"*": "fallback-model", "claude-*": "claude-family"},
			wantMatch:       true,
			wantPattern:     "*",
			wantReplacement: "fallback-model",
		},
		{
			name:      "no match",
			model:     "gpt-omega",
			rules:     models.RenameRules{"claude-*": "claude-family"},
			wantMatch: false,
		},
		{
			name:      "empty rules",
			model:     "claude-haiku-4-5",
			rules:     models.RenameRules{},
			wantMatch: false,
		},
		{
			name:  "prefix equal to whole model matches",
			model: "claude-haiku-",
			rules: models.RenameRules{
				"claude-haiku-*": "claude-haiku-4-5",
			},
			wantMatch:       true,
			wantPattern:     "claude-haiku-*",
			wantReplacement: "claude-haiku-4-5",
		},
		{
			name:      "interior wildcard is not a prefix pattern",
			model:     "claude-v2-haiku",
			rules:     models.RenameRules{"claude-*-haiku": "never"},
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, ok := MatchRenameRule(tt.model, tt.rules)
			if ok != tt.wantMatch {
				t.Fatalf("MatchRenameRule(%q) ok = %v, want %v", tt.model, ok, tt.wantMatch)
			}
			if !tt.wantMatch {
				return
			}
			if match.Pattern != tt.wantPattern {
				t.Errorf("pattern = %q, want %q", match.Pattern, tt.wantPattern)
			}
			if match.Replacement != tt.wantReplacement {
				t.Errorf("replacement = %q, want %q", match.Replacement, tt.wantReplacement)
			}
		})
	}
}

func TestCheckRules(t *testing.T) {
	rules := models.RenameRules{
		"*":               "fallback",
		"claude-haiku-*":  "claude-haiku-4-5",
		"claude-*-latest": "suspicious",
		"gpt-*-mini":      "suspicious-too",
	}

	suspect := CheckRules(rules)
	want := []string{"claude-*-latest", "gpt-*-mini"}
	if len(suspect) != len(want) {
		t.Fatalf("CheckRules returned %v, want %v", suspect, want)
	}
	for i := range want {
		if suspect[i] != want[i] {
			t.Errorf("suspect[%d] = %q, want %q", i, suspect[i], want[i])
		}
	}
}

func BenchmarkMatchRenameRule(b *testing.B) {
	rules := models.RenameRules{
		"*":                  "fallback-model",
		"claude-opus-*":      "claude-opus-4-5",
		"claude-sonnet-*":    "claude-sonnet-4-5",
		"claude-haiku-*":     "claude-haiku-4-5",
		"gpt-4o-*":           "gpt-4o",
		"gpt-4o-mini-*":      "gpt-4o-mini",
		"deprecated-model-1": "claude-sonnet-4-5",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		MatchRenameRule("claude-haiku-4-5-20251001", rules)
	}
}
