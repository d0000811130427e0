package uid

import "testing"

func TestSnowflake_Monotonic(t *testing.T) {
	s, err := NewSnowflakeWithNode(1)
	if err != nil {
		t.Fatalf("NewSnowflakeWithNode: %v", err)
	}

	prev := s.Generate()
	for range 1000 {
		next := s.Generate()
		if next <= prev {
			t.Fatalf("ids not increasing: %d then %d", prev, next)
		}
		prev = next
	}

	if _, err := NewSnowflakeWithNode(4096); err == nil {
		t.Fatal("expected error for out of range node")
	}
}

func TestULID_Sortable(t *testing.T) {
	u := NewULID()

	prev := u.Generate()
	for range 1000 {
		next := u.Generate()
		if len(next) != 26 || next <= prev {
			t.Fatalf("ulids not increasing: %q then %q", prev, next)
		}
		prev = next
	}
}

func TestToken_Opaque(t *testing.T) {
	tok := NewToken()

	seen := make(map[string]struct{})
	for range 100 {
		v := tok.Generate()
		if len(v) != 43 {
			t.Fatalf("len(%q) = %d, want 43", v, len(v))
		}
		if _, dup := seen[v]; dup {
			t.Fatalf("token collision %q", v)
		}
		seen[v] = struct{}{}
	}
}

func TestUUID_Unique(t *testing.T) {
	u := NewUUID()
	if u.Generate() == u.Generate() {
		t.Fatal("uuid collision")
	}
}
