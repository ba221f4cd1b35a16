// SPDX-License-Identifier: MPL-2.0

package semver

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Version
		wantErr bool
	}{
		{name: "full version", input: "1.2.3", want: Version{Major: 1, Minor: 2, Patch: 3}},
		{name: "v prefix", input: "v2.0.1", want: Version{Major: 2, Patch: 1}},
		{name: "major only", input: "3", want: Version{Major: 3}},
		{name: "prerelease", input: "1.0.0-rc.1", want: Version{Major: 1, Prerelease: "rc.1"}},
		{name: "build metadata ignored", input: "1.0.0+build.5", want: Version{Major: 1}},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "not-a-version", wantErr: true},
		{name: "trailing junk", input: "1.2.3!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidVersion) {
					t.Errorf("Parse(%q) error does not wrap ErrInvalidVersion", tt.input)
				}
				return
			}
			if got.Major != tt.want.Major || got.Minor != tt.want.Minor ||
				got.Patch != tt.want.Patch || got.Prerelease != tt.want.Prerelease {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "2.0.0", -1},
		{"2.1.0", "2.0.9", 1},
		{"1.0.1", "1.0.2", -1},
		// Release orders after its own pre-release.
		{"1.0.0", "1.0.0-rc.1", 1},
		{"1.0.0-alpha", "1.0.0-beta", -1},
		{"1.0.0-rc.1", "1.0.0-rc.1", 0},
	}

	for _, tt := range tests {
		a, err := Parse(tt.a)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.a, err)
		}
		b, err := Parse(tt.b)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.b, err)
		}
		if got := a.Compare(b); got != tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		expr      string
		want      bool
		wantErr   bool
	}{
		{name: "empty constraint matches anything", candidate: "0.0.1-alpha", expr: "", want: true},
		{name: "exact match", candidate: "1.2.3", expr: "1.2.3", want: true},
		{name: "exact mismatch", candidate: "1.2.4", expr: "1.2.3", want: false},
		{name: "gte", candidate: "2.0.0", expr: ">=1.0.0", want: true},
		{name: "conjunction satisfied", candidate: "1.5.0", expr: ">=1.2,<2.0", want: true},
		{name: "conjunction lower bound fails", candidate: "1.1.0", expr: ">=1.2,<2.0", want: false},
		{name: "conjunction upper bound fails", candidate: "2.0.0", expr: ">=1.2,<2.0", want: false},
		{name: "caret", candidate: "1.9.9", expr: "^1.2.0", want: true},
		{name: "caret major bump", candidate: "2.0.0", expr: "^1.2.0", want: false},
		{name: "tilde", candidate: "1.2.9", expr: "~1.2.3", want: true},
		{name: "tilde minor bump", candidate: "1.3.0", expr: "~1.2.3", want: false},
		{name: "prerelease below release bound", candidate: "2.0.0-rc.1", expr: ">=2.0.0", want: false},
		{name: "malformed candidate", candidate: "bogus", expr: ">=1.0", wantErr: true},
		{name: "malformed constraint", candidate: "1.0.0", expr: ">>1.0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Match(tt.candidate, tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Match(%q, %q) error = %v, wantErr %v", tt.candidate, tt.expr, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.candidate, tt.expr, got, tt.want)
			}
		})
	}
}

func TestMatchDeterministic(t *testing.T) {
	for range 10 {
		ok, err := Match("1.4.2", ">=1.2,<2.0")
		if err != nil || !ok {
			t.Fatalf("Match() = %v, %v; want true, nil on every call", ok, err)
		}
	}
}

func TestConstraintSetString(t *testing.T) {
	set, err := ParseConstraintSet(">=1.2, <2.0")
	if err != nil {
		t.Fatalf("ParseConstraintSet: %v", err)
	}
	if got := set.String(); got != ">=1.2,<2.0" {
		t.Errorf("String() = %q, want %q", got, ">=1.2,<2.0")
	}

	var empty ConstraintSet
	if got := empty.String(); got != "Any" {
		t.Errorf("empty String() = %q, want Any", got)
	}
}

func TestSortVersions(t *testing.T) {
	got := SortVersions([]string{"1.0.0", "2.1.0", "nonsense", "2.1.0-beta", "0.9.0"})
	want := []string{"2.1.0", "2.1.0-beta", "1.0.0", "0.9.0"}
	if len(got) != len(want) {
		t.Fatalf("SortVersions returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SortVersions[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
