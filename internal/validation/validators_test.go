package validation

import "testing"

func TestIsIPv4(t *testing.T) {
	valid := []string{
		"0.0.0.0",
		"255.255.255.255",
		"10.0.0.5",
		"192.168.1.1",
		"1.2.3.4",
		"01.2.3.4", // leading zeros parse to a valid integer
	}
	for _, s := range valid {
		if !IsIPv4(s) {
			t.Errorf("IsIPv4(%q) = false, want true", s)
		}
	}

	invalid := []string{
		"",
		"999.1.1.1",
		"256.1.1.1",
		"1.2.3",
		"1.2.3.4.5",
		"1.2.3.",
		".1.2.3",
		"1..2.3",
		"1.2.3.4 ",
		" 1.2.3.4",
		"1.2.3. 4",
		"1.2.3.+4",
		"1.2.3.-4",
		"a.b.c.d",
		"1.2.3.4\n",
		"10.0.0.5/32",
		"0x1.2.3.4",
		"1234.1.1.1",
		"::1",
		"2001:db8::1",
	}
	for _, s := range invalid {
		if IsIPv4(s) {
			t.Errorf("IsIPv4(%q) = true, want false", s)
		}
	}
}

func TestIsIPv4FullRange(t *testing.T) {
	// Boundary values for a single segment.
	for _, s := range []string{"0.0.0.255", "0.0.0.256", "0.0.0.300"} {
		want := s == "0.0.0.255"
		if got := IsIPv4(s); got != want {
			t.Errorf("IsIPv4(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestValidateSetName(t *testing.T) {
	if err := ValidateSetName("whitelist"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateSetName("vip_clients-2"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	for _, bad := range []string{"", "a b", "set;drop", "x/y"} {
		if err := ValidateSetName(bad); err == nil {
			t.Errorf("ValidateSetName(%q) = nil, want error", bad)
		}
	}
}
