package dedup

import (
	"reflect"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"Grand Hotel Plaza", "grand plaza"},
		{"The Ritz & Spa Resort", "ritz"},
		{"Café Müller Hôtel", "cafe muller"},
		{"HOTEL   Luna!!!", "luna"},
		{"Отель Аврора", "аврора"},
		{"B&B Rosa", "rosa"}, // "b" and "b" too short after the & rewrite
		{"!!!", ""},
	}
	for _, c := range cases {
		if got := NormalizeName(c.in); got != c.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNameTokens_MinLength(t *testing.T) {
	got := NameTokens("Lo Grand Plaza")
	want := map[string]struct{}{"grand": {}, "plaza": {}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NameTokens = %v, want %v", got, want)
	}
}

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"12 Main Street", "12 main str"},
		{"12 Main St.", "12 main str"},
		{"5 Oak Avenue, Floor 2", "5 oak ave floor 2"},
		{"Bd. Général-Leclerc", "bd. general leclerc"},
	}
	for _, c := range cases {
		if got := NormalizeAddress(c.in); got != c.want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeSite(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"https://www.example.com/", "example.com"},
		{"http://example.com/rooms/12", "example.com"},
		{"WWW.Example.COM", "example.com"},
		{"example.com", "example.com"},
	}
	for _, c := range cases {
		if got := NormalizeSite(c.in); got != c.want {
			t.Errorf("NormalizeSite(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"+38 (044) 123-45-67", "+380441234567"},
		{"044 123 45 67", "0441234567"},
		{"call us", ""},
	}
	for _, c := range cases {
		if got := NormalizePhone(c.in); got != c.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestJaccard(t *testing.T) {
	set := func(ts ...string) map[string]struct{} {
		m := map[string]struct{}{}
		for _, s := range ts {
			m[s] = struct{}{}
		}
		return m
	}
	cases := []struct {
		a, b map[string]struct{}
		want float64
	}{
		{set("a", "b"), set("a", "b"), 1},
		{set("a", "b"), set("c", "d"), 0},
		{set("a", "b", "c"), set("a", "d"), 0.25},
		{set(), set("a"), 0},
		{set(), set(), 0},
	}
	for i, c := range cases {
		if got := Jaccard(c.a, c.b); got != c.want {
			t.Errorf("case %d: Jaccard = %v, want %v", i, got, c.want)
		}
	}
}
