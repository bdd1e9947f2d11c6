package versioning

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

// History lists every version in boardID's lineage, oldest version first.
// Boards that were never cloned report only themselves.
func (s *Service) History(ctx context.Context, boardID string) ([]store.Board, error) {
	board, err := s.getBoard(ctx, s.store, boardID)
	if err != nil {
		return nil, err
	}
	boards, err := s.store.ListLineage(ctx, LineageRoot(board))
	if err != nil {
		return nil, err
	}
	SortByVersion(boards)
	return boards, nil
}

// SortByVersion orders boards by numeric version, then creation time. A board
// without a version sorts as InitialVersion.
func SortByVersion(boards []store.Board) {
	sort.SliceStable(boards, func(i, j int) bool {
		c := CompareVersions(versionOf(boards[i]), versionOf(boards[j]))
		if c != 0 {
			return c < 0
		}
		return boards[i].CreatedAt.Before(boards[j].CreatedAt)
	})
}

func versionOf(b store.Board) string {
	if b.Version == "" {
		return InitialVersion
	}
	return b.Version
}

type NodeChange struct {
	NodeID string   `json:"nodeId"`
	Fields []string `json:"fields"`
}

type EdgeRelabel struct {
	EdgeID string `json:"edgeId"`
	Source string `json:"source"`
	Target string `json:"target"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// Diff describes how the "to" version differs from the "from" version.
// Nodes and edges are matched by their board-scoped IDs, personas by name and
// improvements by number.
type Diff struct {
	FromBoardID         string        `json:"fromBoardId"`
	ToBoardID           string        `json:"toBoardId"`
	FromVersion         string        `json:"fromVersion"`
	ToVersion           string        `json:"toVersion"`
	NodesAdded          []string      `json:"nodesAdded"`
	NodesRemoved        []string      `json:"nodesRemoved"`
	NodesChanged        []NodeChange  `json:"nodesChanged"`
	EdgesAdded          []store.Edge  `json:"edgesAdded"`
	EdgesRemoved        []store.Edge  `json:"edgesRemoved"`
	EdgesRelabeled      []EdgeRelabel `json:"edgesRelabeled"`
	PersonasAdded       []string      `json:"personasAdded"`
	PersonasRemoved     []string      `json:"personasRemoved"`
	ImprovementsAdded   []string      `json:"improvementsAdded"`
	ImprovementsRemoved []string      `json:"improvementsRemoved"`
}

func (d Diff) Empty() bool {
	return len(d.NodesAdded) == 0 && len(d.NodesRemoved) == 0 && len(d.NodesChanged) == 0 &&
		len(d.EdgesAdded) == 0 && len(d.EdgesRemoved) == 0 && len(d.EdgesRelabeled) == 0 &&
		len(d.PersonasAdded) == 0 && len(d.PersonasRemoved) == 0 &&
		len(d.ImprovementsAdded) == 0 && len(d.ImprovementsRemoved) == 0
}

type snapshot struct {
	board        store.Board
	nodes        []store.Node
	edges        []store.Edge
	personas     []store.Persona
	improvements []store.Improvement
}

func (s *Service) snapshot(ctx context.Context, boardID string) (snapshot, error) {
	board, err := s.getBoard(ctx, s.store, boardID)
	if err != nil {
		return snapshot{}, err
	}
	snap := snapshot{board: board}
	if snap.nodes, err = s.store.ListNodes(ctx, boardID); err != nil {
		return snapshot{}, err
	}
	if snap.edges, err = s.store.ListEdges(ctx, boardID); err != nil {
		return snapshot{}, err
	}
	if snap.personas, err = s.store.ListPersonas(ctx, boardID); err != nil {
		return snapshot{}, err
	}
	if snap.improvements, err = s.store.ListImprovements(ctx, boardID); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

// Compare diffs two versions of the same lineage.
func (s *Service) Compare(ctx context.Context, fromID, toID string) (Diff, error) {
	from, err := s.snapshot(ctx, fromID)
	if err != nil {
		return Diff{}, err
	}
	to, err := s.snapshot(ctx, toID)
	if err != nil {
		return Diff{}, err
	}
	if LineageRoot(from.board) != LineageRoot(to.board) {
		return Diff{}, fmt.Errorf("%w: %s and %s", ErrDifferentLineage, fromID, toID)
	}
	return diffSnapshots(from, to), nil
}

func diffSnapshots(from, to snapshot) Diff {
	diff := Diff{
		FromBoardID:         from.board.ID,
		ToBoardID:           to.board.ID,
		FromVersion:         versionOf(from.board),
		ToVersion:           versionOf(to.board),
		NodesAdded:          make([]string, 0),
		NodesRemoved:        make([]string, 0),
		NodesChanged:        make([]NodeChange, 0),
		EdgesAdded:          make([]store.Edge, 0),
		EdgesRemoved:        make([]store.Edge, 0),
		EdgesRelabeled:      make([]EdgeRelabel, 0),
		PersonasAdded:       make([]string, 0),
		PersonasRemoved:     make([]string, 0),
		ImprovementsAdded:   make([]string, 0),
		ImprovementsRemoved: make([]string, 0),
	}

	fromNodes := make(map[string]store.Node, len(from.nodes))
	for _, node := range from.nodes {
		fromNodes[node.NodeID] = node
	}
	toNodes := make(map[string]struct{}, len(to.nodes))
	for _, node := range to.nodes {
		toNodes[node.NodeID] = struct{}{}
		before, ok := fromNodes[node.NodeID]
		if !ok {
			diff.NodesAdded = append(diff.NodesAdded, node.NodeID)
			continue
		}
		if fields := changedNodeFields(before, node); len(fields) > 0 {
			diff.NodesChanged = append(diff.NodesChanged, NodeChange{NodeID: node.NodeID, Fields: fields})
		}
	}
	for _, node := range from.nodes {
		if _, ok := toNodes[node.NodeID]; !ok {
			diff.NodesRemoved = append(diff.NodesRemoved, node.NodeID)
		}
	}

	fromEdges := make(map[string]store.Edge, len(from.edges))
	for _, edge := range from.edges {
		fromEdges[edge.EdgeID] = edge
	}
	toEdges := make(map[string]struct{}, len(to.edges))
	for _, edge := range to.edges {
		toEdges[edge.EdgeID] = struct{}{}
		before, ok := fromEdges[edge.EdgeID]
		switch {
		case !ok:
			diff.EdgesAdded = append(diff.EdgesAdded, edge)
		case before.Label != edge.Label:
			diff.EdgesRelabeled = append(diff.EdgesRelabeled, EdgeRelabel{
				EdgeID: edge.EdgeID,
				Source: edge.Source,
				Target: edge.Target,
				From:   before.Label,
				To:     edge.Label,
			})
		}
	}
	for _, edge := range from.edges {
		if _, ok := toEdges[edge.EdgeID]; !ok {
			diff.EdgesRemoved = append(diff.EdgesRemoved, edge)
		}
	}

	diff.PersonasAdded, diff.PersonasRemoved = diffNames(personaNames(from.personas), personaNames(to.personas))
	diff.ImprovementsAdded, diff.ImprovementsRemoved = diffImprovements(from.improvements, to.improvements)
	return diff
}

func changedNodeFields(before, after store.Node) []string {
	fields := make([]string, 0)
	if before.Type != after.Type {
		fields = append(fields, "type")
	}
	if before.X != after.X || before.Y != after.Y {
		fields = append(fields, "position")
	}
	if !sameSize(before.Width, after.Width) || !sameSize(before.Height, after.Height) {
		fields = append(fields, "size")
	}
	if before.Data.Label != after.Data.Label {
		fields = append(fields, "label")
	}
	if before.Data.Text != after.Data.Text {
		fields = append(fields, "text")
	}
	if before.Data.Platform != after.Data.Platform {
		fields = append(fields, "platform")
	}
	if before.Data.StorageKey != after.Data.StorageKey || before.Data.ImageURL != after.Data.ImageURL {
		fields = append(fields, "image")
	}
	return fields
}

func sameSize(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func personaNames(personas []store.Persona) []string {
	names := make([]string, 0, len(personas))
	for _, persona := range personas {
		names = append(names, persona.Name)
	}
	return names
}

func diffNames(from, to []string) ([]string, []string) {
	added := make([]string, 0)
	removed := make([]string, 0)
	for _, name := range to {
		if !containsFold(from, name) {
			added = append(added, name)
		}
	}
	for _, name := range from {
		if !containsFold(to, name) {
			removed = append(removed, name)
		}
	}
	return added, removed
}

func containsFold(names []string, name string) bool {
	return slices.ContainsFunc(names, func(candidate string) bool {
		return strings.EqualFold(candidate, name)
	})
}

func diffImprovements(from, to []store.Improvement) ([]string, []string) {
	fromNumbers := make(map[int]struct{}, len(from))
	for _, item := range from {
		fromNumbers[item.Number] = struct{}{}
	}
	toNumbers := make(map[int]struct{}, len(to))
	added := make([]string, 0)
	for _, item := range to {
		toNumbers[item.Number] = struct{}{}
		if _, ok := fromNumbers[item.Number]; !ok {
			added = append(added, item.Title)
		}
	}
	removed := make([]string, 0)
	for _, item := range from {
		if _, ok := toNumbers[item.Number]; !ok {
			removed = append(removed, item.Title)
		}
	}
	return added, removed
}
