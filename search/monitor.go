package search

import "github.com/poiesic/docsift/core"

// SearchMonitor provides hooks to observe the ranking process.
// Implement this interface to track intermediate steps and results.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(vector []float32)
	AfterMatch(matches []Match)
	Failed(err error)
	Finish(results []core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)               {}
func (n *noopMonitor) AfterEmbedding(_ []float32)   {}
func (n *noopMonitor) AfterMatch(_ []Match)         {}
func (n *noopMonitor) Failed(_ error)               {}
func (n *noopMonitor) Finish(_ []core.SearchResult) {}
