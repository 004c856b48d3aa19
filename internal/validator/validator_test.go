package validator

import "testing"

func TestValidatePhone(t *testing.T) {
	valid := []string{"08030000000", "09012345678", "07061234567"}
	for _, phone := range valid {
		if err := ValidatePhone(phone); err != nil {
			t.Errorf("ValidatePhone(%q): unexpected error %v", phone, err)
		}
	}
	invalid := []string{"", "803000000", "080300000000", "+2348030000000", "0803000000a"}
	for _, phone := range invalid {
		if err := ValidatePhone(phone); err == nil {
			t.Errorf("ValidatePhone(%q): expected error", phone)
		}
	}
}

func TestValidateDestination(t *testing.T) {
	cases := []struct {
		service     string
		destination string
		ok          bool
	}{
		{"airtime", "08030000000", true},
		{"data", "08030000000", true},
		{"exam", "08030000000", true},
		{"pin", "08030000000", true},
		{"airtime", "1234", false},
		{"cable", "12345678", true},
		{"cable", "123456789012", true},
		{"cable", "1234567", false},
		{"cable", "08030000000x", false},
		{"electricity", "1234567890", true},
		{"electricity", "1234567890123", true},
		{"electricity", "123456789", false},
	}
	for _, tc := range cases {
		err := ValidateDestination(tc.service, tc.destination)
		if tc.ok && err != nil {
			t.Errorf("ValidateDestination(%q, %q): unexpected error %v", tc.service, tc.destination, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ValidateDestination(%q, %q): expected error", tc.service, tc.destination)
		}
	}
}
