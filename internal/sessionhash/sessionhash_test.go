package sessionhash

import (
	"testing"

	"github.com/spacekeeper/spacekeeperd/internal/model"
)

func TestHash_EmptyIsZero(t *testing.T) {
	if got := Hash(nil, ""); got != 0 {
		t.Errorf("Hash(nil) = %d, want 0", got)
	}
	if got := Hash([]model.Tab{{URL: ""}}, ""); got != 0 {
		t.Errorf("Hash([{url:\"\"}]) = %d, want 0", got)
	}
}

func TestHash_Regression(t *testing.T) {
	// This exact value must never change, or every stored session hash
	// becomes unreconcilable.
	got := Hash([]model.Tab{{URL: "https://example.com"}}, "")
	const want = uint32(632849614)
	if got != want {
		t.Fatalf("Hash regression: got %d, want %d", got, want)
	}
}

func TestHash_DeterministicAndOrderSensitive(t *testing.T) {
	tabs := []model.Tab{
		{URL: "https://a.example/"},
		{URL: "https://b.example/"},
	}
	h1 := Hash(tabs, "")
	h2 := Hash(append([]model.Tab(nil), tabs...), "")
	if h1 != h2 {
		t.Errorf("hash not deterministic: %d != %d", h1, h2)
	}

	reversed := []model.Tab{tabs[1], tabs[0]}
	if Hash(reversed, "") == h1 {
		t.Errorf("hash should be order-sensitive")
	}
}

func TestHash_QueryFragmentInsensitive(t *testing.T) {
	a := []model.Tab{{URL: "https://example.com/page?x=1"}}
	b := []model.Tab{{URL: "https://example.com/page#frag"}}
	if Hash(a, "") != Hash(b, "") {
		t.Errorf("expected equal hashes for URLs differing only in query/fragment")
	}
}
