package process

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitArguments(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "   ", want: nil},
		{name: "plain", in: "--wf-tcp=80,443 --new", want: []string{"--wf-tcp=80,443", "--new"}},
		{
			name: "quoted value with spaces",
			in:   `--hostlist="C:\path with spaces\list.txt" --other-flag`,
			want: []string{`--hostlist=C:\path with spaces\list.txt`, "--other-flag"},
		},
		{name: "empty quotes", in: `--a="" --b`, want: []string{"--a=", "--b"}},
		{name: "tabs and newlines", in: "--a\t--b\n--c", want: []string{"--a", "--b", "--c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, SplitArguments(tc.in)); diff != "" {
				t.Fatalf("SplitArguments mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
