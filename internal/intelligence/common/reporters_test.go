package common

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalReporter(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"U.S.", "U.S.", true},
		{"US", "U.S.", true},
		{"U. S.", "U.S.", true},
		{"S.Ct.", "S. Ct.", true},
		{"L.Ed.2d", "L. Ed. 2d", true},
		{"F. 2d", "F.2d", true},
		{"Fed. Appx.", "F. App'x", true},
		{"F.Supp.3d", "F. Supp. 3d", true},
		{"WL", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := CanonicalReporter(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestReporterPattern_MatchesSpellings(t *testing.T) {
	re := regexp.MustCompile(`^` + ReporterPattern() + `$`)
	for _, r := range Reporters() {
		assert.True(t, re.MatchString(r.Canonical), r.Canonical)
		for _, a := range r.Aliases {
			assert.True(t, re.MatchString(a), a)
		}
	}
	assert.True(t, re.MatchString("US"))
	assert.True(t, re.MatchString("F. Supp.2d"))
	assert.False(t, re.MatchString("WL"))
}

func TestReporterKeysAreUnique(t *testing.T) {
	seen := map[string]string{}
	for _, r := range Reporters() {
		k := ReporterKey(r.Canonical)
		require.NotEmpty(t, k)
		if prev, dup := seen[k]; dup {
			t.Fatalf("%q and %q share key %q", prev, r.Canonical, k)
		}
		seen[k] = r.Canonical
	}
}

//Personal.AI order the ending
