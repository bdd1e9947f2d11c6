package versioning

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/proposals"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/util"
)

// Placement of added nodes: below their anchor, or left to right on a row.
const (
	anchorOffsetY = 300
	looseOriginX  = 200
	looseSpacingX = 300
	looseRowY     = 400
)

const (
	skipUnresolved = "node reference did not resolve"
	skipNoEdge     = "no matching edge"
	skipNoSuchNode = "no matching node"
)

type ApplyResult struct {
	Board   store.Board         `json:"board"`
	Applied int                 `json:"applied"`
	Skipped []proposals.Skipped `json:"skipped"`
}

// ApplyProposals clones sourceID and applies the proposals to the clone in
// list order. Entries that fail to decode or reference nothing on the board
// are skipped and reported; store failures roll back the clone.
func (s *Service) ApplyProposals(ctx context.Context, sourceID string, raw []json.RawMessage, versionNote string) (ApplyResult, error) {
	var result ApplyResult
	err := s.inLineage(ctx, sourceID, func(tx *store.Store, source store.Board) error {
		board, err := cloneInto(ctx, tx, source, versionNote)
		if err != nil {
			return err
		}
		ws, err := loadWorkingSet(ctx, tx, board.ID)
		if err != nil {
			return err
		}

		skipped := make([]proposals.Skipped, 0)
		applied := 0
		for i, item := range raw {
			proposal, action, err := proposals.DecodeOne(item)
			if err != nil {
				skipped = append(skipped, proposals.Skipped{Index: i, Action: action, Reason: err.Error()})
				continue
			}
			reason, err := ws.apply(ctx, proposal)
			if err != nil {
				return err
			}
			if reason != "" {
				skipped = append(skipped, proposals.Skipped{Index: i, Action: action, Reason: reason})
				continue
			}
			applied++
		}

		if err := tx.TouchBoard(ctx, board.ID); err != nil {
			return err
		}
		board, err = tx.GetBoard(ctx, board.ID)
		if err != nil {
			return err
		}
		result = ApplyResult{Board: board, Applied: applied, Skipped: skipped}
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}
	s.logger.Info("proposals applied",
		zap.String("source_board_id", sourceID),
		zap.String("board_id", result.Board.ID),
		zap.String("version", result.Board.Version),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// workingSet mirrors the clone's nodes and edges so each proposal sees the
// effects of the ones before it without re-reading the board.
type workingSet struct {
	tx      *store.Store
	boardID string
	nodes   []store.Node
	edges   []store.Edge
	added   int
}

func loadWorkingSet(ctx context.Context, tx *store.Store, boardID string) (*workingSet, error) {
	nodes, err := tx.ListNodes(ctx, boardID)
	if err != nil {
		return nil, err
	}
	edges, err := tx.ListEdges(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return &workingSet{tx: tx, boardID: boardID, nodes: nodes, edges: edges}, nil
}

// apply returns a non-empty reason when the proposal was skipped.
func (ws *workingSet) apply(ctx context.Context, proposal proposals.Proposal) (string, error) {
	switch p := proposal.(type) {
	case proposals.AddNode:
		return "", ws.addNode(ctx, p)
	case proposals.AddEdge:
		return ws.addEdge(ctx, p)
	case proposals.RelabelEdge:
		return ws.relabelEdge(ctx, p)
	case proposals.RemoveNode:
		return ws.removeNode(ctx, p)
	case proposals.RemoveEdge:
		return ws.removeEdge(ctx, p)
	}
	return "unsupported proposal", nil
}

// resolve matches ref against node IDs first and then, ignoring case and
// surrounding space, against node labels and text.
func (ws *workingSet) resolve(ref string) (store.Node, bool) {
	if ref == "" {
		return store.Node{}, false
	}
	for _, node := range ws.nodes {
		if node.NodeID == ref {
			return node, true
		}
	}
	want := strings.TrimSpace(ref)
	if want == "" {
		return store.Node{}, false
	}
	for _, node := range ws.nodes {
		if strings.EqualFold(strings.TrimSpace(node.Data.Label), want) ||
			strings.EqualFold(strings.TrimSpace(node.Data.Text), want) {
			return node, true
		}
	}
	return store.Node{}, false
}

func (ws *workingSet) findEdge(source, target string) (int, bool) {
	for i, edge := range ws.edges {
		if edge.Source == source && edge.Target == target {
			return i, true
		}
	}
	return -1, false
}

func (ws *workingSet) addNode(ctx context.Context, p proposals.AddNode) error {
	node := store.Node{
		BoardID: ws.boardID,
		NodeID:  util.ShortID("ai"),
		Type:    p.NodeType,
		Data: store.NodeData{
			Label:    p.Label,
			Text:     p.Text,
			Platform: p.Platform,
		},
	}
	if node.Type == "" {
		node.Type = store.NodeTypeText
	}

	anchor, anchored := ws.resolve(p.AfterNode)
	if anchored {
		node.X = anchor.X
		node.Y = anchor.Y + anchorOffsetY
	} else {
		node.X = float64(looseOriginX + looseSpacingX*ws.added)
		node.Y = looseRowY
	}
	ws.added++

	created, err := ws.tx.CreateNode(ctx, node)
	if err != nil {
		return err
	}
	ws.nodes = append(ws.nodes, created)

	if anchored {
		edge, err := ws.tx.CreateEdge(ctx, store.Edge{
			BoardID: ws.boardID,
			Source:  anchor.NodeID,
			Target:  created.NodeID,
			Label:   p.ConnectionLabel,
		})
		if err != nil {
			return err
		}
		ws.edges = append(ws.edges, edge)
	}
	return nil
}

func (ws *workingSet) addEdge(ctx context.Context, p proposals.AddEdge) (string, error) {
	source, ok := ws.resolve(p.Source)
	if !ok {
		return skipUnresolved, nil
	}
	target, ok := ws.resolve(p.Target)
	if !ok {
		return skipUnresolved, nil
	}
	edge, err := ws.tx.CreateEdge(ctx, store.Edge{
		BoardID: ws.boardID,
		Source:  source.NodeID,
		Target:  target.NodeID,
		Label:   p.Label,
	})
	if err != nil {
		return "", err
	}
	ws.edges = append(ws.edges, edge)
	return "", nil
}

func (ws *workingSet) relabelEdge(ctx context.Context, p proposals.RelabelEdge) (string, error) {
	source, ok := ws.resolve(p.Source)
	if !ok {
		return skipUnresolved, nil
	}
	target, ok := ws.resolve(p.Target)
	if !ok {
		return skipUnresolved, nil
	}
	i, ok := ws.findEdge(source.NodeID, target.NodeID)
	if !ok {
		return skipNoEdge, nil
	}
	label := p.Label
	updated, err := ws.tx.UpdateEdge(ctx, ws.boardID, ws.edges[i].EdgeID, store.EdgePatch{Label: &label})
	if err != nil {
		return "", err
	}
	ws.edges[i] = updated
	return "", nil
}

func (ws *workingSet) removeNode(ctx context.Context, p proposals.RemoveNode) (string, error) {
	ref := p.NodeID
	if ref == "" {
		ref = p.Label
	}
	node, ok := ws.resolve(ref)
	if !ok {
		return skipNoSuchNode, nil
	}
	if err := ws.tx.DeleteNode(ctx, ws.boardID, node.NodeID); err != nil {
		return "", err
	}

	nodes := ws.nodes[:0]
	for _, n := range ws.nodes {
		if n.NodeID != node.NodeID {
			nodes = append(nodes, n)
		}
	}
	ws.nodes = nodes
	edges := ws.edges[:0]
	for _, e := range ws.edges {
		if e.Source != node.NodeID && e.Target != node.NodeID {
			edges = append(edges, e)
		}
	}
	ws.edges = edges
	return "", nil
}

func (ws *workingSet) removeEdge(ctx context.Context, p proposals.RemoveEdge) (string, error) {
	source, ok := ws.resolve(p.Source)
	if !ok {
		return skipUnresolved, nil
	}
	target, ok := ws.resolve(p.Target)
	if !ok {
		return skipUnresolved, nil
	}
	i, ok := ws.findEdge(source.NodeID, target.NodeID)
	if !ok {
		return skipNoEdge, nil
	}
	if err := ws.tx.DeleteEdge(ctx, ws.boardID, ws.edges[i].EdgeID); err != nil {
		return "", err
	}
	ws.edges = append(ws.edges[:i], ws.edges[i+1:]...)
	return "", nil
}
