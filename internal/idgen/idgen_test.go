package idgen

import "testing"

func TestGenerate_FenceIDShape(t *testing.T) {
	for i := range 100 {
		id, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error on iteration %d: %v", i, err)
		}
		if !IsFenceID(id) {
			t.Fatalf("Generate() = %q, want gf- followed by 12 alphanumerics", id)
		}
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	const count = 5_000
	seen := make(map[string]struct{}, count)
	for i := range count {
		id, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestIsFenceID(t *testing.T) {
	for _, tc := range []struct {
		id   string
		want bool
	}{
		{"gf-abcDEF012345", true},
		{"gf-abcDEF01234", false},
		{"gf-abcDEF0123456", false},
		{"gf-abc-EF012345", false},
		{"xx-abcDEF012345", false},
		{"", false},
	} {
		if got := IsFenceID(tc.id); got != tc.want {
			t.Errorf("IsFenceID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}
