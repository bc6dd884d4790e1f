package memory

import (
	"fmt"
	"testing"
)

func makeTurns(n int) []Turn {
	turns := make([]Turn, 0, n)
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleModel
		}
		turns = append(turns, Turn{ID: int64(i + 1), Role: role, Content: fmt.Sprintf("turn %d", i+1)})
	}
	return turns
}

func TestSplitForCompaction(t *testing.T) {
	cases := []struct {
		name     string
		total    int
		limit    int
		keep     int
		needed   bool
		dropLen  int
		restLen  int
		firstRem int64
	}{
		{name: "under limit", total: 50, limit: 50, keep: 30, needed: false, restLen: 50},
		{name: "one over", total: 51, limit: 50, keep: 30, needed: true, dropLen: 21, restLen: 30, firstRem: 22},
		{name: "far over", total: 80, limit: 50, keep: 30, needed: true, dropLen: 50, restLen: 30, firstRem: 51},
		{name: "keep defaults to limit", total: 51, limit: 50, keep: 0, needed: true, dropLen: 1, restLen: 50, firstRem: 2},
		{name: "empty", total: 0, limit: 50, keep: 30, needed: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			drop, rest, needed := splitForCompaction(makeTurns(tc.total), tc.limit, tc.keep)
			if needed != tc.needed {
				t.Fatalf("needed = %v, want %v", needed, tc.needed)
			}
			if len(drop) != tc.dropLen {
				t.Fatalf("drop len = %d, want %d", len(drop), tc.dropLen)
			}
			if len(rest) != tc.restLen {
				t.Fatalf("rest len = %d, want %d", len(rest), tc.restLen)
			}
			if tc.restLen > 0 && tc.firstRem != 0 && rest[0].ID != tc.firstRem {
				t.Fatalf("first kept id = %d, want %d", rest[0].ID, tc.firstRem)
			}
		})
	}
}

func TestSplitNeverExceedsLimit(t *testing.T) {
	for total := 0; total <= 120; total++ {
		_, rest, _ := splitForCompaction(makeTurns(total), 50, 30)
		if len(rest) > 50 {
			t.Fatalf("after compaction %d turns remain for total %d", len(rest), total)
		}
	}
}

func TestTranscript(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleModel, Content: "hello!"},
	}
	want := "user: hi\nmodel: hello!"
	if got := transcript(turns); got != want {
		t.Fatalf("transcript = %q, want %q", got, want)
	}
}
