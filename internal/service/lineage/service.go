// Package lineage provides traversal and comparison over the version DAG.
package lineage

import (
	"context"
	"errors"
	"fmt"

	"refinery/internal/domain"
	"refinery/internal/transform"
)

// Service answers lineage queries: ancestor chains, descendant subtrees,
// version diffs, and replay verification. It only reads; the DAG is
// append-only and edges are immutable.
type Service struct {
	versions domain.VersionRepository
	edges    domain.EdgeRepository
	blobs    domain.BlobStore
	executor *transform.Executor
}

// NewService creates a lineage service.
func NewService(versions domain.VersionRepository, edges domain.EdgeRepository, blobs domain.BlobStore, executor *transform.Executor) *Service {
	return &Service{versions: versions, edges: edges, blobs: blobs, executor: executor}
}

// maxChainLength bounds ancestor walks. A chain longer than this in a
// store where every version is created by one apply means a corrupt graph.
const maxChainLength = 100_000

// Ancestors returns the full chain from the lineage root down to the given
// version, inclusive. Entry zero is the root (nil Edge); the last entry is
// the requested version. Cycles and dangling parent references surface as
// *domain.LineageCorruptionError.
func (s *Service) Ancestors(ctx context.Context, versionID string) ([]domain.LineageEntry, error) {
	v, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}

	var chain []domain.LineageEntry
	seen := map[string]bool{}
	for {
		if seen[v.ID] {
			return nil, &domain.LineageCorruptionError{VersionID: versionID, Message: "cycle detected at version " + v.ID}
		}
		if len(chain) >= maxChainLength {
			return nil, &domain.LineageCorruptionError{VersionID: versionID, Message: "ancestor chain exceeds maximum length"}
		}
		seen[v.ID] = true

		entry := domain.LineageEntry{Version: v}
		if !v.Root() {
			edge, err := s.edges.GetByResultVersion(ctx, v.ID)
			if err != nil {
				var nf *domain.NotFoundError
				if errors.As(err, &nf) {
					return nil, &domain.LineageCorruptionError{VersionID: versionID, Message: "version " + v.ID + " has a parent but no inbound edge"}
				}
				return nil, err
			}
			entry.Edge = edge
		}
		chain = append(chain, entry)

		if v.Root() {
			break
		}
		parent, err := s.versions.GetByID(ctx, *v.ParentVersionID)
		if err != nil {
			var nf *domain.NotFoundError
			if errors.As(err, &nf) {
				return nil, &domain.LineageCorruptionError{VersionID: versionID, Message: "dangling parent reference " + *v.ParentVersionID}
			}
			return nil, err
		}
		v = parent
	}

	// Reverse into root-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Descendants returns every version derivable from the given one,
// breadth-first, each paired with its inbound edge. The starting version
// itself is not included.
func (s *Service) Descendants(ctx context.Context, versionID string) ([]domain.LineageEntry, error) {
	if _, err := s.versions.GetByID(ctx, versionID); err != nil {
		return nil, err
	}

	var out []domain.LineageEntry
	queue := []string{versionID}
	seen := map[string]bool{versionID: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		children, err := s.edges.ListBySourceVersion(ctx, cur)
		if err != nil {
			return nil, err
		}
		for i := range children {
			edge := children[i]
			if seen[edge.ResultVersionID] {
				return nil, &domain.LineageCorruptionError{VersionID: versionID, Message: "cycle detected at version " + edge.ResultVersionID}
			}
			seen[edge.ResultVersionID] = true

			child, err := s.versions.GetByID(ctx, edge.ResultVersionID)
			if err != nil {
				return nil, err
			}
			out = append(out, domain.LineageEntry{Version: child, Edge: &edge})
			queue = append(queue, child.ID)
		}
	}
	return out, nil
}

// Diff compares two versions of the same dataset. If they share an
// ancestor, the diff lists the edges from A up to the common ancestor and
// from the ancestor down to B; otherwise Related is false. Row and column
// deltas are B minus A either way.
func (s *Service) Diff(ctx context.Context, versionA, versionB string) (*domain.VersionDiff, error) {
	a, err := s.versions.GetByID(ctx, versionA)
	if err != nil {
		return nil, err
	}
	b, err := s.versions.GetByID(ctx, versionB)
	if err != nil {
		return nil, err
	}
	if a.DatasetID != b.DatasetID {
		return nil, domain.ErrValidation("versions %s and %s belong to different datasets", versionA, versionB)
	}

	chainA, err := s.Ancestors(ctx, versionA)
	if err != nil {
		return nil, err
	}
	chainB, err := s.Ancestors(ctx, versionB)
	if err != nil {
		return nil, err
	}

	diff := &domain.VersionDiff{
		VersionA:    versionA,
		VersionB:    versionB,
		RowDelta:    b.RowCount - a.RowCount,
		ColumnDelta: b.ColumnCount - a.ColumnCount,
	}

	posA := make(map[string]int, len(chainA))
	for i, e := range chainA {
		posA[e.Version.ID] = i
	}

	// Deepest entry of B's chain that also appears in A's chain. Both
	// chains start at the dataset root, so for versions on one lineage
	// graph an ancestor always exists.
	ancestorIdxA, ancestorIdxB := -1, -1
	for i := len(chainB) - 1; i >= 0; i-- {
		if j, ok := posA[chainB[i].Version.ID]; ok {
			ancestorIdxA, ancestorIdxB = j, i
			break
		}
	}
	if ancestorIdxA < 0 {
		return diff, nil
	}

	diff.Related = true
	diff.CommonAncestor = chainA[ancestorIdxA].Version.ID

	// Walk A up to the ancestor, then the ancestor down to B.
	for i := len(chainA) - 1; i > ancestorIdxA; i-- {
		edge := chainA[i].Edge
		diff.StepsBetween = append(diff.StepsBetween, domain.DiffEdge{
			Direction:       "up",
			SourceVersionID: edge.SourceVersionID,
			ResultVersionID: edge.ResultVersionID,
			Steps:           edge.Steps,
		})
	}
	for i := ancestorIdxB + 1; i < len(chainB); i++ {
		edge := chainB[i].Edge
		diff.StepsBetween = append(diff.StepsBetween, domain.DiffEdge{
			Direction:       "down",
			SourceVersionID: edge.SourceVersionID,
			ResultVersionID: edge.ResultVersionID,
			Steps:           edge.Steps,
		})
	}
	return diff, nil
}

// Replay re-executes the full edge chain from the root blob and verifies
// that the recomputed content hash matches the stored one. It proves the
// version is reconstructible from its root plus its ordered configs.
func (s *Service) Replay(ctx context.Context, versionID string) error {
	chain, err := s.Ancestors(ctx, versionID)
	if err != nil {
		return err
	}

	data, err := s.blobs.Get(ctx, chain[0].Version.ContentHash)
	if err != nil {
		return err
	}
	for _, entry := range chain[1:] {
		res, err := s.executor.Execute(ctx, data, entry.Edge.Steps, transform.ModeFull)
		if err != nil {
			return fmt.Errorf("replay edge %s: %w", entry.Edge.ID, err)
		}
		data = res.Bytes
	}

	want := chain[len(chain)-1].Version.ContentHash
	if got := domain.ContentHash(data); got != want {
		return &domain.LineageCorruptionError{
			VersionID: versionID,
			Message:   fmt.Sprintf("replayed content hash %s does not match stored %s", got, want),
		}
	}
	return nil
}
