package topology

import (
	"sort"

	"mote-scheduler/internal/node"
)

// Config describes a static mote tree, either as a parent -> ordered children
// mapping (Links) or as a nested structure (Tree). Exactly one form is used.
type Config struct {
	// Sink is the root mote. With Links it may be omitted when exactly one
	// parent is never listed as a child.
	Sink  uint32              `yaml:"sink,omitempty" json:"sink,omitempty"`
	Links map[uint32][]uint32 `yaml:"links,omitempty" json:"links,omitempty"`
	Tree  *NodeConfig         `yaml:"tree,omitempty" json:"tree,omitempty"`
}

// NodeConfig is one mote of the nested form.
type NodeConfig struct {
	ID       uint32        `yaml:"id" json:"id"`
	Children []*NodeConfig `yaml:"children,omitempty" json:"children,omitempty"`
}

// Build validates the configuration and constructs the tree. Duplicate ids,
// motes with two parents, cycles, unreachable motes and a missing or
// ambiguous root are rejected before any node is handed out.
func Build(cfg *Config) (*node.Node, error) {
	if cfg == nil {
		return nil, malformed(0, "no topology")
	}
	var (
		root *node.Node
		err  error
	)
	switch {
	case cfg.Tree != nil && len(cfg.Links) > 0:
		return nil, malformed(0, "both links and tree are defined")
	case cfg.Tree != nil:
		root, err = buildTree(cfg)
	default:
		root, err = buildLinks(cfg)
	}
	if err != nil {
		return nil, err
	}
	log.WithField("sink", root.ID).WithField("motes", root.Len()).Debug("Built topology")
	return root, nil
}

func buildTree(cfg *Config) (*node.Node, error) {
	if cfg.Sink != 0 && cfg.Sink != cfg.Tree.ID {
		return nil, malformed(cfg.Sink, "sink does not match tree root %d", cfg.Tree.ID)
	}
	seen := make(map[uint32]bool)
	var build func(c *NodeConfig) (*node.Node, error)
	build = func(c *NodeConfig) (*node.Node, error) {
		if c == nil {
			return nil, malformed(0, "empty tree entry")
		}
		if c.ID == 0 {
			return nil, malformed(0, "mote id must be positive")
		}
		if seen[c.ID] {
			return nil, malformed(c.ID, "duplicate id")
		}
		seen[c.ID] = true
		n := node.NewNode(c.ID)
		for _, childCfg := range c.Children {
			child, err := build(childCfg)
			if err != nil {
				return nil, err
			}
			n.AddChild(child)
		}
		return n, nil
	}
	return build(cfg.Tree)
}

func buildLinks(cfg *Config) (*node.Node, error) {
	parents := make([]uint32, 0, len(cfg.Links))
	for parent := range cfg.Links {
		parents = append(parents, parent)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })

	parentOf := make(map[uint32]uint32)
	for _, parent := range parents {
		if parent == 0 {
			return nil, malformed(0, "mote id must be positive")
		}
		for _, child := range cfg.Links[parent] {
			switch {
			case child == 0:
				return nil, malformed(parent, "child id must be positive")
			case child == parent:
				return nil, malformed(child, "cycle: mote is its own child")
			}
			if previous, ok := parentOf[child]; ok {
				if previous == parent {
					return nil, malformed(child, "listed twice under parent %d", parent)
				}
				return nil, malformed(child, "child of both %d and %d", previous, parent)
			}
			parentOf[child] = parent
		}
	}

	sink, err := findSink(cfg.Sink, parents, parentOf)
	if err != nil {
		return nil, err
	}

	reached := make(map[uint32]bool)
	var build func(id uint32) *node.Node
	build = func(id uint32) *node.Node {
		reached[id] = true
		n := node.NewNode(id)
		for _, child := range cfg.Links[id] {
			n.AddChild(build(child))
		}
		return n
	}
	root := build(sink)

	for _, id := range allIDs(parents, parentOf) {
		if reached[id] {
			continue
		}
		if onCycle(id, parentOf) {
			return nil, malformed(id, "cycle detected")
		}
		return nil, malformed(id, "not reachable from sink %d", sink)
	}
	return root, nil
}

func findSink(sink uint32, parents []uint32, parentOf map[uint32]uint32) (uint32, error) {
	if sink != 0 {
		if parent, ok := parentOf[sink]; ok {
			return 0, malformed(sink, "sink is listed as a child of %d", parent)
		}
		return sink, nil
	}
	var candidates []uint32
	for _, parent := range parents {
		if _, ok := parentOf[parent]; !ok {
			candidates = append(candidates, parent)
		}
	}
	switch len(candidates) {
	case 0:
		if len(parents) == 0 {
			return 0, malformed(0, "empty topology")
		}
		return 0, malformed(parents[0], "no sink: every parent is also a child (cycle)")
	case 1:
		return candidates[0], nil
	}
	return 0, malformed(0, "ambiguous sink, candidates %v", candidates)
}

func allIDs(parents []uint32, parentOf map[uint32]uint32) []uint32 {
	ids := append([]uint32{}, parents...)
	for child := range parentOf {
		ids = append(ids, child)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func onCycle(id uint32, parentOf map[uint32]uint32) bool {
	visited := map[uint32]bool{}
	for current, ok := id, true; ok; current, ok = parentOf[current] {
		if visited[current] {
			return true
		}
		visited[current] = true
	}
	return false
}
