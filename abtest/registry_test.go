package abtest

import (
	"testing"

	"github.com/rushteam/rankproxy/core"
)

func TestRegistry_Resolve(t *testing.T) {
	defaultEP := core.Endpoint{Name: "default", URL: "http://ranker-default/v0/reorder"}
	variantA := core.Endpoint{Name: "variant_a", URL: "http://ranker-a/v0/reorder"}

	registry, err := NewRegistry(defaultEP, map[string]core.Endpoint{
		"user_a": variantA,
	}, nil)
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}

	tests := []struct {
		name   string
		userID string
		want   string
	}{
		{"mapped user", "user_a", variantA.URL},
		{"unmapped user falls back to default", "stranger", defaultEP.URL},
		{"empty user id falls back to default", "", defaultEP.URL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := registry.Resolve(tt.userID); got.URL != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.userID, got.URL, tt.want)
			}
		})
	}
}

func TestRegistry_ResolveIdempotent(t *testing.T) {
	defaultEP := core.Endpoint{Name: "default", URL: "http://ranker-default/v0/reorder"}
	registry, err := NewRegistry(defaultEP, map[string]core.Endpoint{
		"user_a": {Name: "a", URL: "http://ranker-a/v0/reorder"},
	}, []Rule{
		{Condition: `user_id.endsWith("1")`, Endpoint: core.Endpoint{Name: "b", URL: "http://ranker-b/v0/reorder"}},
	})
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}

	for _, userID := range []string{"user_a", "user_1", "other"} {
		first := registry.Resolve(userID)
		second := registry.Resolve(userID)
		if first != second {
			t.Errorf("Resolve(%q) not idempotent: %v != %v", userID, first, second)
		}
	}
}

func TestRegistry_Rules(t *testing.T) {
	defaultEP := core.Endpoint{Name: "default", URL: "http://ranker-default/v0/reorder"}
	variantB := core.Endpoint{Name: "variant_b", URL: "http://ranker-b/v0/reorder"}
	variantC := core.Endpoint{Name: "variant_c", URL: "http://ranker-c/v0/reorder"}

	registry, err := NewRegistry(defaultEP,
		map[string]core.Endpoint{"user_9": variantC},
		[]Rule{
			{Condition: `user_id.endsWith("1")`, Endpoint: variantB},
			{Condition: `user_id.startsWith("qa_")`, Endpoint: variantC},
		})
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}

	tests := []struct {
		userID string
		want   string
	}{
		{"user_1", variantB.URL},    // 尾号规则命中
		{"qa_tester", variantC.URL}, // 前缀规则命中
		{"user_9", variantC.URL},    // 精确映射优先于规则
		{"user_2", defaultEP.URL},   // 无命中
	}
	for _, tt := range tests {
		if got := registry.Resolve(tt.userID); got.URL != tt.want {
			t.Errorf("Resolve(%q) = %s, want %s", tt.userID, got.URL, tt.want)
		}
	}
}

func TestRegistry_InvalidRuleFailsConstruction(t *testing.T) {
	defaultEP := core.Endpoint{Name: "default", URL: "http://ranker-default/v0/reorder"}
	_, err := NewRegistry(defaultEP, nil, []Rule{
		{Condition: `user_id ==`, Endpoint: defaultEP},
	})
	if err == nil {
		t.Fatal("expected compile error for invalid rule")
	}
}

func TestRegistry_RequiresDefault(t *testing.T) {
	_, err := NewRegistry(core.Endpoint{}, nil, nil)
	if err == nil {
		t.Fatal("expected error for missing default endpoint")
	}
}
