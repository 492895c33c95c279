// Package config loads the node's file-based configuration: bootnode lists
// and chain-wide parameters. The denunciation core itself takes no
// file-based configuration — its only parameters (ThreadCount,
// EndorsementCount) are threaded in via denunciation.Params, loaded here
// from a chain.yaml file when one is given on the command line.
package config

import (
	"fmt"
	"os"

	"github.com/leanchain/gean/denunciation"
	"gopkg.in/yaml.v3"
)

// bootnodeEntry represents a bootnode with named fields (legacy format).
type bootnodeEntry struct {
	Multiaddr string `yaml:"multiaddr"`
}

// LoadBootnodes loads a nodes.yaml file and returns raw bootnode strings.
// Supports both formats:
//   - Legacy:  [{multiaddr: "/ip4/..."}]
//   - ENR:     ["enr:-IW4Q..."]
func LoadBootnodes(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read nodes: %w", err)
	}

	// Try legacy struct format first.
	var entries []bootnodeEntry
	if err := yaml.Unmarshal(data, &entries); err == nil && len(entries) > 0 && entries[0].Multiaddr != "" {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Multiaddr != "" {
				out = append(out, e.Multiaddr)
			}
		}
		return out, nil
	}

	// Fall back to plain string list (ENR or multiaddr strings).
	var strs []string
	if err := yaml.Unmarshal(data, &strs); err != nil {
		return nil, fmt.Errorf("parse nodes: %w", err)
	}
	return strs, nil
}

// chainParamsFile is the on-disk shape of chain.yaml.
type chainParamsFile struct {
	ThreadCount      uint8  `yaml:"thread_count"`
	EndorsementCount uint32 `yaml:"endorsement_count"`
}

// LoadChainParams loads the chain-wide denunciation codec bounds from a
// chain.yaml file. Per the denunciation package's own design (no process-
// global mutable state), this is the one place those bounds are read from
// disk; everything downstream takes them as an explicit Params value.
func LoadChainParams(path string) (denunciation.Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return denunciation.Params{}, fmt.Errorf("read chain params: %w", err)
	}

	var f chainParamsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return denunciation.Params{}, fmt.Errorf("parse chain params: %w", err)
	}

	return denunciation.Params{
		ThreadCount:      f.ThreadCount,
		EndorsementCount: f.EndorsementCount,
	}, nil
}
