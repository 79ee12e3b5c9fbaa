package hive

import (
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		username string
		valid    bool
	}{
		{"alice", true},
		{"bob", true},
		{"abc", true},
		{"a-b-c", true},
		{"user123", true},
		{"alice.bob", true},
		{"abc.def.ghi", true},
		{"a234567890123456", true},

		{"", false},
		{"ab", false},
		{"a2345678901234567", false},
		{"Alice", false},
		{"1alice", false},
		{"-alice", false},
		{"alice-", false},
		{"al_ice", false},
		{"alice.bo", false},
		{"ab.cdef", false},
		{".alice", false},
		{"alice.", false},
		{"alice..bob", false},
		{strings.Repeat("a", 17), false},
	}

	for _, test := range tests {
		err := ValidateUsername(test.username)
		if test.valid && err != nil {
			t.Errorf("ValidateUsername(%q) rejected a valid name: %s", test.username, err)
		}
		if !test.valid && err == nil {
			t.Errorf("ValidateUsername(%q) accepted an invalid name", test.username)
		}
	}
}
