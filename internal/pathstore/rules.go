package pathstore

import (
	"fmt"
	"strconv"

	"github.com/dgallion1/treerule/internal/rules"
)

// TreePrefix is the key under which one tree's published rules live.
func TreePrefix(treeID string) string {
	return fmt.Sprintf("rules/%s", treeID)
}

// MetaKey is the key of a tree's summary node.
func MetaKey(treeID string) string {
	return TreePrefix(treeID) + "/meta"
}

// LeafKey is the key of one published leaf rule.
func LeafKey(treeID string, leafID int) string {
	return TreePrefix(treeID) + "/leaves/" + strconv.Itoa(leafID)
}

// LeafNode builds the stored form of a leaf rule. Purer leaves are more
// salient.
func LeafNode(treeID string, l rules.LeafRule) NodeRequest {
	salience := 1 - l.Impurity
	if salience < 0.01 {
		salience = 0.01
	}
	return NodeRequest{
		Value: map[string]any{
			"id":          l.ID,
			"impurity":    l.Impurity,
			"count":       l.Count,
			"rule":        l.Rule,
			"conjunction": l.Conjunction(),
		},
		MemoryType: "semantic",
		Salience:   salience,
		Source:     "treerule:" + treeID,
	}
}
