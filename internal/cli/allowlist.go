package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"lockmint/internal/merkle"
	"lockmint/pkg/domain"
)

// allowlistFile accepts either a bare list of addresses or a mapping with an
// addresses key. JSON files parse the same way.
type allowlistFile struct {
	Addresses []string `yaml:"addresses"`
}

func loadAllowlist(path string) ([]domain.Address, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read allowlist: %w", err)
	}

	var raw []string
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse allowlist %s: %w", path, err)
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("allowlist %s is empty", path)
	}
	switch node.Content[0].Kind {
	case yaml.SequenceNode:
		err = node.Content[0].Decode(&raw)
	default:
		var file allowlistFile
		err = node.Content[0].Decode(&file)
		raw = file.Addresses
	}
	if err != nil {
		return nil, fmt.Errorf("parse allowlist %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("allowlist %s has no addresses", path)
	}

	addrs := make([]domain.Address, 0, len(raw))
	for i, s := range raw {
		a, err := domain.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("allowlist entry %d (%q): %w", i, s, err)
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}

func loadTree(path string) (*merkle.Tree, error) {
	addrs, err := loadAllowlist(path)
	if err != nil {
		return nil, err
	}
	return merkle.NewAddressTree(addrs)
}
