package redact

import "testing"

func TestString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"key value", "token=abc123456789", "token=" + Placeholder},
		{"bearer header", "Authorization: Bearer s3cr3t-token", "Authorization: Bearer " + Placeholder},
		{"quoted", `password="infected-archive"`, `password="` + Placeholder + `"`},
		{"digest untouched", "sha256 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", "sha256 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"},
		{"script untouched", `#@~^CAAAAA==\ko$K6,JCV^GJr3gMAAA==^#~@`, `#@~^CAAAAA==\ko$K6,JCV^GJr3gMAAA==^#~@`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := String(tt.in); got != tt.want {
				t.Fatalf("String(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMapNeverPersist(t *testing.T) {
	got := Map(map[string]any{
		"api_token":     "super-secret-value",
		"nested":        []any{"token=abc123456789"},
		"NEVER_PERSIST": "api_token, missing",
	})
	if len(got) != 2 {
		t.Fatalf("want 2 keys after dropping the mask list, got %#v", got)
	}
	if got["api_token"] != Placeholder {
		t.Fatalf("api_token = %#v", got["api_token"])
	}
	nested, _ := got["nested"].([]any)
	if len(nested) != 1 || nested[0] != "token="+Placeholder {
		t.Fatalf("nested = %#v", got["nested"])
	}
}

func TestMapAlwaysMasked(t *testing.T) {
	in := map[string]any{
		"zip_password":  "infected",
		"Authorization": "xyz",
		"offset":        48,
	}
	got := Map(in)
	if got["zip_password"] != Placeholder || got["Authorization"] != Placeholder {
		t.Fatalf("sensitive keys not masked: %#v", got)
	}
	if got["offset"] != 48 {
		t.Fatalf("offset altered: %#v", got["offset"])
	}
	if in["zip_password"] != "infected" {
		t.Fatal("input map was modified")
	}
}

func TestMapEmpty(t *testing.T) {
	for _, in := range []map[string]any{nil, {}} {
		if got := Map(in); got != nil {
			t.Fatalf("Map(%#v) = %#v, want nil", in, got)
		}
	}
}
