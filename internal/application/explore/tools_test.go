package explore

import (
	"testing"
)

func TestSearchArgsTerminatesFlagsBeforeQuery(t *testing.T) {
	cases := []string{
		"User Journeys",
		"-rf",
		"--max-count=0",
	}
	for _, query := range cases {
		args := searchArgs(query)
		if len(args) < 2 {
			t.Fatalf("argv too short: %v", args)
		}
		if args[len(args)-1] != query {
			t.Errorf("query %q must be the last argument, got %v", query, args)
		}
		if args[len(args)-2] != "--" {
			t.Errorf("query %q must follow the option terminator, got %v", query, args)
		}
	}
}
