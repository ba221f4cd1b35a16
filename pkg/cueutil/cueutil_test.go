// SPDX-License-Identifier: MPL-2.0

package cueutil_test

import (
	"strings"
	"testing"

	"github.com/modhub/modhub/pkg/cueutil"
)

const testSchema = `
#Thing: {
	name:    string & =~"^[a-z]+$"
	count:   int & >=0
	comment?: string
}
`

type thing struct {
	Name    string `json:"name"`
	Count   int    `json:"count"`
	Comment string `json:"comment,omitempty"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    thing
		wantErr string
	}{
		{
			name: "valid input",
			data: `name: "abc", count: 2`,
			want: thing{Name: "abc", Count: 2},
		},
		{
			name: "optional field",
			data: `name: "abc", count: 0, comment: "hi"`,
			want: thing{Name: "abc", Count: 0, Comment: "hi"},
		},
		{
			name:    "schema violation",
			data:    `name: "ABC", count: 1`,
			wantErr: "name",
		},
		{
			name:    "missing required field",
			data:    `name: "abc"`,
			wantErr: "count",
		},
		{
			name:    "syntax error",
			data:    `name: `,
			wantErr: "thing.cue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cueutil.Decode[thing]([]byte(testSchema), []byte(tt.data), "#Thing", "thing.cue")
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Decode() = %+v, want error containing %q", got, tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("Decode() error = %q, want it to mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if *got != tt.want {
				t.Errorf("Decode() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestDecodeRejectsOversizedInput(t *testing.T) {
	big := strings.Repeat("// padding\n", cueutil.MaxFileBytes/10)
	_, err := cueutil.Decode[thing]([]byte(testSchema), []byte(big), "#Thing", "big.cue")
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("Decode() error = %v, want file-too-large error", err)
	}
}
