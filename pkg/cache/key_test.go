package cache

import (
	"testing"

	"pgregory.net/rapid"
)

func TestNewKey_String(t *testing.T) {
	tests := []struct {
		name       string
		namespace  string
		typ        Type
		components map[string]string
		want       string
	}{
		{
			name:      "no components",
			namespace: "embeddings",
			typ:       TypeEmbedding,
			want:      "embeddings:embedding",
		},
		{
			name:       "single component",
			namespace:  "agent:researcher-1",
			typ:        TypeResponse,
			components: map[string]string{"model": "gpt-4"},
			want:       "agent:researcher-1:response:model=gpt-4",
		},
		{
			name:      "components sorted by name",
			namespace: "test",
			typ:       TypeResponse,
			components: map[string]string{
				"param_z": "value_z",
				"param_a": "value_a",
				"param_m": "value_m",
			},
			want: "test:response:param_a=value_a:param_m=value_m:param_z=value_z",
		},
		{
			name:      "computation key",
			namespace: "computations",
			typ:       TypeComputation,
			components: map[string]string{
				"computation": "sim",
				"params_hash": "abc123",
			},
			want: "computations:computation:computation=sim:params_hash=abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewKey(tt.namespace, tt.typ, tt.components).String()
			if got != tt.want {
				t.Errorf("NewKey().String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewKey_HashKeyFormat(t *testing.T) {
	key := NewKey("test", TypeResponse, map[string]string{"input": "hello"})

	if len(key.HashKey) != hashKeyLen {
		t.Errorf("len(HashKey) = %d, want %d", len(key.HashKey), hashKeyLen)
	}
	for _, c := range key.HashKey {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Errorf("HashKey %q contains non-hex character %q", key.HashKey, c)
		}
	}
}

// TestNewKey_Determinism ensures same input always produces same hash key
func TestNewKey_Determinism(t *testing.T) {
	components := map[string]string{
		"input": "hello",
		"model": "gpt-4",
	}

	// Generate key multiple times
	results := make([]string, 10)
	for i := 0; i < 10; i++ {
		results[i] = NewKey("test", TypeResponse, components).HashKey
	}

	// All results should be identical
	first := results[0]
	for i, result := range results {
		if result != first {
			t.Errorf("result[%d] = %v, want %v (not deterministic)", i, result, first)
		}
	}
}

func TestNewKey_Divergence(t *testing.T) {
	base := NewKey("test", TypeResponse, map[string]string{
		"input": "hello",
		"model": "gpt-4",
	})

	tests := []struct {
		name string
		key  Key
	}{
		{
			name: "different component value",
			key: NewKey("test", TypeResponse, map[string]string{
				"input": "hello",
				"model": "gpt-3.5",
			}),
		},
		{
			name: "different component name",
			key: NewKey("test", TypeResponse, map[string]string{
				"input_hash": "hello",
				"model":      "gpt-4",
			}),
		},
		{
			name: "different namespace",
			key: NewKey("prod", TypeResponse, map[string]string{
				"input": "hello",
				"model": "gpt-4",
			}),
		},
		{
			name: "different type",
			key: NewKey("test", TypeComputation, map[string]string{
				"input": "hello",
				"model": "gpt-4",
			}),
		},
		{
			name: "missing component",
			key: NewKey("test", TypeResponse, map[string]string{
				"input": "hello",
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.key.HashKey == base.HashKey {
				t.Errorf("HashKey = %v, want different from base %v", tt.key.HashKey, base.HashKey)
			}
		})
	}
}

func TestHashText(t *testing.T) {
	a := HashText("what is the weather")
	b := HashText("what is the weather")
	c := HashText("what is the weather?")

	if a != b {
		t.Errorf("HashText not deterministic: %v != %v", a, b)
	}
	if a == c {
		t.Errorf("HashText(%q) == HashText(%q), want different", "what is the weather", "what is the weather?")
	}
	if len(a) != hashKeyLen {
		t.Errorf("len(HashText()) = %d, want %d", len(a), hashKeyLen)
	}
}

func TestHashParams(t *testing.T) {
	a := HashParams(map[string]any{"a": "x", "b": "y"})
	b := HashParams(map[string]any{"b": "y", "a": "x"})
	if a != b {
		t.Errorf("HashParams order-sensitive: %v != %v", a, b)
	}

	c := HashParams(map[string]any{"a": "x", "b": "z"})
	if c == a {
		t.Errorf("HashParams(%v) == HashParams(%v), want different", "b=z", "b=y")
	}

	nested := HashParams(map[string]any{
		"steps": 10,
		"opts":  map[string]any{"greedy": true},
	})
	if len(nested) != hashKeyLen {
		t.Errorf("len(HashParams()) = %d, want %d", len(nested), hashKeyLen)
	}
}

func TestNewKey_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		namespace := rapid.StringMatching(`[a-z][a-z0-9:_-]{0,20}`).Draw(rt, "namespace")
		components := rapid.MapOfN(
			rapid.StringMatching(`[a-z_]{1,12}`),
			rapid.StringMatching(`[A-Za-z0-9._-]{0,16}`),
			0, 6,
		).Draw(rt, "components")

		first := NewKey(namespace, TypeResponse, components)
		second := NewKey(namespace, TypeResponse, components)
		if first.HashKey != second.HashKey {
			rt.Fatalf("same inputs produced %v and %v", first.HashKey, second.HashKey)
		}
		if len(first.HashKey) != hashKeyLen {
			rt.Fatalf("len(HashKey) = %d, want %d", len(first.HashKey), hashKeyLen)
		}

		// Changing any single component changes the hash key
		name := rapid.StringMatching(`[a-z_]{1,12}`).Draw(rt, "name")
		changed := make(map[string]string, len(components)+1)
		for k, v := range components {
			changed[k] = v
		}
		if v, ok := changed[name]; ok {
			changed[name] = v + "x"
		} else {
			changed[name] = "x"
		}

		third := NewKey(namespace, TypeResponse, changed)
		if third.HashKey == first.HashKey {
			rt.Fatalf("changed component %q did not change hash key %v", name, first.HashKey)
		}
	})
}
