package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadBootnodesLegacyFormat(t *testing.T) {
	path := writeTemp(t, "nodes.yaml", `
- multiaddr: "/ip4/127.0.0.1/udp/9000/quic-v1/p2p/12D3KooWAbc"
- multiaddr: "/ip4/127.0.0.1/udp/9001/quic-v1/p2p/12D3KooWDef"
`)
	got, err := LoadBootnodes(path)
	if err != nil {
		t.Fatalf("LoadBootnodes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bootnodes, got %d", len(got))
	}
}

func TestLoadBootnodesPlainStringList(t *testing.T) {
	path := writeTemp(t, "nodes.yaml", `
- "/ip4/127.0.0.1/udp/9000/quic-v1/p2p/12D3KooWAbc"
- "enr:-IW4QA"
`)
	got, err := LoadBootnodes(path)
	if err != nil {
		t.Fatalf("LoadBootnodes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bootnodes, got %d", len(got))
	}
}

func TestLoadChainParams(t *testing.T) {
	path := writeTemp(t, "chain.yaml", "thread_count: 32\nendorsement_count: 16\n")

	params, err := LoadChainParams(path)
	if err != nil {
		t.Fatalf("LoadChainParams: %v", err)
	}
	if params.ThreadCount != 32 || params.EndorsementCount != 16 {
		t.Fatalf("unexpected params: %+v", params)
	}
}

func TestLoadChainParamsMissingFile(t *testing.T) {
	if _, err := LoadChainParams(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
