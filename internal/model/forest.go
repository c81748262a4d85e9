package model

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Node is one decision tree node. Leaves have Left and Right set to -1
// and carry the predicted label in Value.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     int     `json:"value"`
}

// Tree is a flat node list rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (n *Node) leaf() bool {
	return n.Left < 0 && n.Right < 0
}

// Forest is a majority-vote tree ensemble.
type Forest struct {
	base
	trees []Tree
}

func newForest(a *Artifact) (*Forest, error) {
	if len(a.Trees) == 0 {
		return nil, fmt.Errorf("%w: forest has no trees", domain.ErrArtifactLoad)
	}
	for i := range a.Trees {
		if err := validateTree(&a.Trees[i], len(a.FeatureNames)); err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", domain.ErrArtifactLoad, i, err)
		}
	}

	return &Forest{
		base: base{
			kind:           KindForest,
			version:        a.Version,
			encoderVersion: a.EncoderVersion,
			names:          append([]string(nil), a.FeatureNames...),
		},
		trees: a.Trees,
	}, nil
}

// validateTree checks node references. Children must point forward, which
// also rules out cycles.
func validateTree(t *Tree, width int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.leaf() {
			if n.Value != 0 && n.Value != 1 {
				return fmt.Errorf("node %d: leaf label %d not in {0,1}", i, n.Value)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= width {
			return fmt.Errorf("node %d: feature index %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: bad child reference", i)
		}
	}
	return nil
}

// Predict runs every tree and returns the majority label. Ties go to 0.
func (f *Forest) Predict(values []float64) (int, error) {
	if err := f.checkWidth(values); err != nil {
		return 0, err
	}

	votes := 0
	for i := range f.trees {
		votes += f.trees[i].predict(values)
	}
	if 2*votes > len(f.trees) {
		return 1, nil
	}
	return 0, nil
}

// TreeCount returns the ensemble size.
func (f *Forest) TreeCount() int {
	return len(f.trees)
}

func (t *Tree) predict(values []float64) int {
	n := &t.Nodes[0]
	for !n.leaf() {
		if values[n.Feature] <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n.Value
}
