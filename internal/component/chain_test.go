package component

import (
	"testing"

	"github.com/bastionwaf/bastion/internal/config"
	"github.com/bastionwaf/bastion/internal/request"
)

func TestBuildPreservesOrder(t *testing.T) {
	chain, err := Build(config.Firewall{Components: []config.Component{
		{Type: "user_agent", DeniedList: map[string]string{"curl": "curl"}},
		{Type: "Header", Strict: true},
		{Type: "ip"},
	}})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	comps := chain.Components()
	if len(comps) != 3 {
		t.Fatalf("expected 3 components, got %d", len(comps))
	}
	names := []string{comps[0].Name(), comps[1].Name(), comps[2].Name()}
	if names[0] != "user_agent" || names[1] != "header" || names[2] != "ip" {
		t.Fatalf("unexpected order %v", names)
	}
	if !comps[1].Strict() {
		t.Fatalf("expected strict header component")
	}
}

func TestBuildRejectsUnknownType(t *testing.T) {
	if _, err := Build(config.Firewall{Components: []config.Component{{Type: "rdns"}}}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestChainFirstDeniedWins(t *testing.T) {
	ua := NewUserAgent()
	ua.SetDeniedList(map[string]string{"curl": "curl"})
	header := NewHeader()
	header.SetStrict(true)

	snap := request.New(request.Fields{Headers: map[string]string{"User-Agent": "curl/8"}})

	comp, denied := NewChain(ua, header).FirstDenied(snap)
	if !denied || comp.DenyStatusCode() != StatusUserAgent {
		t.Fatalf("expected user agent component first, got %v", comp)
	}

	comp, denied = NewChain(header, ua).FirstDenied(snap)
	if !denied || comp.DenyStatusCode() != StatusHeader {
		t.Fatalf("expected header component first, got %v", comp)
	}
}

func TestNilChain(t *testing.T) {
	var chain *Chain
	if _, denied := chain.FirstDenied(request.New(request.Fields{})); denied {
		t.Fatalf("expected nil chain to allow")
	}
	if chain.Len() != 0 {
		t.Fatalf("expected empty nil chain")
	}
}
