package matchgraph

import (
	"sort"
	"time"

	"github.com/quave-io/frida-go/internal/domain"
)

// EdgeSource is the low-level read surface the traversal algorithm needs:
// enough to walk transaction->node->transaction hops without owning SQL
// itself. The postgres adapter implements this against match_node and
// match_node_transactions.
type EdgeSource interface {
	// NodesForTransaction returns every MatchNode edge touching txID.
	NodesForTransaction(ctx domain.Context, txID int64) ([]NodeEdge, error)
	// TransactionsForNode returns every transaction id touching nodeID,
	// paired with that transaction's CreatedAt for window filtering.
	TransactionsForNode(ctx domain.Context, nodeID int64) ([]TxEdge, error)
}

// NodeEdge is one (node, matcher/value/confidence/importance) touching a
// transaction.
type NodeEdge struct {
	NodeID     int64
	Matcher    string
	Value      string
	Confidence int
	Importance int
}

// TxEdge is one transaction touching a node, with its creation time for
// the traversal's date-window filter.
type TxEdge struct {
	TransactionID int64
	CreatedAt     time.Time
}

type pathState struct {
	matchers      []string
	values        []string
	confidenceSum int
	importanceSum int
}

// Traverse implements the depth-bounded bipartite traversal contract of
// spec §4.3: alternating transaction->node->transaction hops, a node
// participates only if its confidence >= minConfidence, a transaction
// participates only if it satisfies the created_at window, the root is
// never emitted, and when multiple paths reach the same neighbour the
// shortest wins (ties broken lexicographically by path matcher sequence).
func Traverse(ctx domain.Context, src EdgeSource, root int64, opts domain.TraversalOptions) ([]domain.ConnectedTransaction, error) {
	maxDepth := opts.MaxDepth
	if maxDepth == 0 {
		maxDepth = 3
	}
	limit := opts.Limit
	if limit == 0 {
		limit = 100
	}
	minConfidence := opts.MinConfidence
	if minConfidence == 0 {
		minConfidence = 50
	}

	if maxDepth <= 0 {
		return nil, nil
	}

	best := map[int64]pathState{}
	bestDepth := map[int64]int{}
	frontier := []int64{root}
	visitedNodes := map[int64]int{} // node id -> BFS depth it was first consumed at
	now := time.Now()

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		next := map[int64]pathState{}
		for _, txID := range frontier {
			var fromPath pathState
			if txID == root {
				fromPath = pathState{}
			} else {
				fromPath = best[txID]
			}

			edges, err := src.NodesForTransaction(ctx, txID)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				if e.Confidence < minConfidence {
					continue
				}
				nodeKey := e.NodeID
				// Within one traversal, a node may be revisited from a
				// shorter path; skip only if already consumed at a
				// strictly shallower BFS layer to preserve the shortest-
				// path invariant while allowing sibling branches at the
				// same depth.
				if d, ok := visitedNodes[nodeKey]; ok && d < depth {
					continue
				}

				neighbours, err := src.TransactionsForNode(ctx, nodeKey)
				if err != nil {
					return nil, err
				}
				for _, nb := range neighbours {
					if nb.TransactionID == root || nb.TransactionID == txID {
						continue
					}
					if opts.MinCreatedAt != nil && nb.CreatedAt.Before(*opts.MinCreatedAt) {
						continue
					}
					if opts.MaxCreatedAt != nil && nb.CreatedAt.After(*opts.MaxCreatedAt) {
						continue
					}
					_ = now

					candidate := pathState{
						matchers:      append(append([]string{}, fromPath.matchers...), e.Matcher),
						values:        append(append([]string{}, fromPath.values...), e.Value),
						confidenceSum: fromPath.confidenceSum + e.Confidence,
						importanceSum: fromPath.importanceSum + e.Importance,
					}

					if existingDepth, ok := bestDepth[nb.TransactionID]; ok {
						if depth > existingDepth {
							continue
						}
						if depth == existingDepth {
							existing := best[nb.TransactionID]
							if !lexLess(candidate.matchers, existing.matchers) {
								continue
							}
						}
					}
					bestDepth[nb.TransactionID] = depth
					best[nb.TransactionID] = candidate
					next[nb.TransactionID] = candidate
				}
				visitedNodes[nodeKey] = depth
			}
		}

		frontier = frontier[:0]
		for txID := range next {
			frontier = append(frontier, txID)
		}
	}

	results := make([]domain.ConnectedTransaction, 0, len(best))
	for txID, p := range best {
		results = append(results, domain.ConnectedTransaction{
			TransactionID:     txID,
			PathMatchers:      p.matchers,
			PathValues:        p.values,
			Depth:             bestDepth[txID],
			PathConfidenceSum: p.confidenceSum,
			PathImportanceSum: p.importanceSum,
			ReachedAt:         now,
		})
	}

	// §4.3 ordering: depth ascending, then path importance descending,
	// then transaction id ascending.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Depth != results[j].Depth {
			return results[i].Depth < results[j].Depth
		}
		if results[i].PathImportanceSum != results[j].PathImportanceSum {
			return results[i].PathImportanceSum > results[j].PathImportanceSum
		}
		return results[i].TransactionID < results[j].TransactionID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// lexLess reports whether a sorts before b by lexicographic order of the
// path's matcher sequence (§4.3 tie-break rule).
func lexLess(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// DirectFromEdges derives DirectConnection rows (depth-1 shortcut shape)
// directly from an EdgeSource, without running the full bounded traversal.
func DirectFromEdges(ctx domain.Context, src EdgeSource, root int64) ([]domain.DirectConnection, error) {
	edges, err := src.NodesForTransaction(ctx, root)
	if err != nil {
		return nil, err
	}
	seen := map[int64]bool{}
	var out []domain.DirectConnection
	for _, e := range edges {
		neighbours, err := src.TransactionsForNode(ctx, e.NodeID)
		if err != nil {
			return nil, err
		}
		for _, nb := range neighbours {
			if nb.TransactionID == root {
				continue
			}
			key := nb.TransactionID*1_000_000_007 + e.NodeID
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, domain.DirectConnection{
				TransactionID: nb.TransactionID,
				Matcher:       e.Matcher,
				Confidence:    e.Confidence,
				Importance:    e.Importance,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out, nil
}
