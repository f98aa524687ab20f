package graph

import (
	"context"
	"fmt"
	"sync"
)

// MemNode is a node held by MemStore.
type MemNode struct {
	ID    int64
	Label string
	Props map[string]any
}

// MemRel is a relationship held by MemStore.
type MemRel struct {
	From int64
	To   int64
	Type string
}

// MemStore keeps the built graph in memory. It backs tests and dry-run
// imports where no graph backend is configured.
type MemStore struct {
	mu    sync.Mutex
	next  int64
	nodes []MemNode
	rels  []MemRel
}

// NewMemStore returns an empty store. Node ids start at 1.
func NewMemStore() *MemStore {
	return &MemStore{next: 1}
}

func (s *MemStore) CreateNode(ctx context.Context, label string, props map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.nodes = append(s.nodes, MemNode{ID: id, Label: label, Props: props})
	return id, nil
}

func (s *MemStore) CreateRel(ctx context.Context, from, to int64, typ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if from < 1 || from >= s.next {
		return fmt.Errorf("relationship %s from unknown node %d", typ, from)
	}
	if to < 1 || to >= s.next {
		return fmt.Errorf("relationship %s to unknown node %d", typ, to)
	}
	s.rels = append(s.rels, MemRel{From: from, To: to, Type: typ})
	return nil
}

// Node returns the node with the given id, or false.
func (s *MemStore) Node(id int64) (MemNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.nodes {
		if n.ID == id {
			return n, true
		}
	}
	return MemNode{}, false
}

// Nodes returns a copy of all nodes in creation order.
func (s *MemStore) Nodes() []MemNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MemNode, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Rels returns a copy of all relationships in creation order.
func (s *MemStore) Rels() []MemRel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MemRel, len(s.rels))
	copy(out, s.rels)
	return out
}

// NodeCount reports how many nodes carry label, or all nodes when label
// is empty.
func (s *MemStore) NodeCount(label string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if label == "" {
		return len(s.nodes)
	}
	n := 0
	for _, node := range s.nodes {
		if node.Label == label {
			n++
		}
	}
	return n
}

// RelCount reports how many relationships have the given type, or all
// relationships when typ is empty.
func (s *MemStore) RelCount(typ string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if typ == "" {
		return len(s.rels)
	}
	n := 0
	for _, r := range s.rels {
		if r.Type == typ {
			n++
		}
	}
	return n
}
