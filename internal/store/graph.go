package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/util"
)

const nodeColumns = `id, board_id, node_id, type, x, y, width, height, data, created_at, updated_at`

func scanNode(row rowScanner) (Node, error) {
	var (
		node                 Node
		width, height        sql.NullFloat64
		data                 string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&node.ID, &node.BoardID, &node.NodeID, &node.Type, &node.X, &node.Y, &width, &height, &data, &createdAt, &updatedAt); err != nil {
		return Node{}, err
	}
	if width.Valid {
		node.Width = &width.Float64
	}
	if height.Valid {
		node.Height = &height.Float64
	}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &node.Data); err != nil {
			return Node{}, fmt.Errorf("decode node data: %w", err)
		}
	}
	node.CreatedAt = fromMillis(createdAt)
	node.UpdatedAt = fromMillis(updatedAt)
	return node, nil
}

func nullFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

// CreateNode inserts a node. A missing NodeID is generated; callers that copy
// nodes between boards pass the original NodeID through unchanged.
func (s *Store) CreateNode(ctx context.Context, node Node) (Node, error) {
	if node.ID == "" {
		node.ID = util.NewID("nod")
	}
	if node.NodeID == "" {
		node.NodeID = util.ShortID("node")
	}
	if node.Type == "" {
		node.Type = NodeTypeText
	}
	now := nowUTC()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	node.UpdatedAt = now
	data, err := marshalJSON(node.Data)
	if err != nil {
		return Node{}, fmt.Errorf("encode node data: %w", err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO nodes (`+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, node.ID, node.BoardID, node.NodeID, node.Type, node.X, node.Y, nullFloat(node.Width), nullFloat(node.Height), data,
		toMillis(node.CreatedAt), toMillis(node.UpdatedAt))
	if err != nil {
		return Node{}, fmt.Errorf("insert node: %w", err)
	}
	return node, nil
}

func (s *Store) GetNode(ctx context.Context, boardID, nodeID string) (Node, error) {
	return scanNode(s.queryRow(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE board_id=? AND node_id=?`, boardID, nodeID))
}

func (s *Store) ListNodes(ctx context.Context, boardID string) ([]Node, error) {
	rows, err := s.query(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE board_id=? ORDER BY created_at, node_id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	items := make([]Node, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		items = append(items, node)
	}
	return items, rows.Err()
}

type NodePatch struct {
	Type   *string
	X      *float64
	Y      *float64
	Width  *float64
	Height *float64
	Data   *NodeData
}

func (s *Store) UpdateNode(ctx context.Context, boardID, nodeID string, patch NodePatch) (Node, error) {
	node, err := s.GetNode(ctx, boardID, nodeID)
	if err != nil {
		return Node{}, err
	}
	if patch.Type != nil {
		node.Type = *patch.Type
	}
	if patch.X != nil {
		node.X = *patch.X
	}
	if patch.Y != nil {
		node.Y = *patch.Y
	}
	if patch.Width != nil {
		node.Width = patch.Width
	}
	if patch.Height != nil {
		node.Height = patch.Height
	}
	if patch.Data != nil {
		node.Data = *patch.Data
	}
	data, err := marshalJSON(node.Data)
	if err != nil {
		return Node{}, fmt.Errorf("encode node data: %w", err)
	}
	node.UpdatedAt = nowUTC()
	err = s.execOne(ctx, `
		UPDATE nodes SET type=?, x=?, y=?, width=?, height=?, data=?, updated_at=?
		WHERE board_id=? AND node_id=?
	`, node.Type, node.X, node.Y, nullFloat(node.Width), nullFloat(node.Height), data, toMillis(node.UpdatedAt), boardID, nodeID)
	if err != nil {
		return Node{}, fmt.Errorf("update node: %w", err)
	}
	return node, nil
}

// UpdateNodePositions commits a batch of canvas moves. Unknown node IDs are ignored.
func (s *Store) UpdateNodePositions(ctx context.Context, boardID string, positions []NodePosition) error {
	return s.WithTx(ctx, func(tx *Store) error {
		updatedAt := toMillis(nowUTC())
		for _, position := range positions {
			if _, err := tx.exec(ctx, `UPDATE nodes SET x=?, y=?, updated_at=? WHERE board_id=? AND node_id=?`,
				position.X, position.Y, updatedAt, boardID, position.NodeID); err != nil {
				return fmt.Errorf("update node position: %w", err)
			}
		}
		return nil
	})
}

// DeleteNode removes a node together with its incident edges and persona assignments.
func (s *Store) DeleteNode(ctx context.Context, boardID, nodeID string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if err := tx.execOne(ctx, `DELETE FROM nodes WHERE board_id=? AND node_id=?`, boardID, nodeID); err != nil {
			return err
		}
		if _, err := tx.DeleteEdgesTouching(ctx, boardID, nodeID); err != nil {
			return err
		}
		if _, err := tx.exec(ctx, `DELETE FROM persona_nodes WHERE board_id=? AND node_id=?`, boardID, nodeID); err != nil {
			return fmt.Errorf("delete persona nodes: %w", err)
		}
		return nil
	})
}

const edgeColumns = `id, board_id, edge_id, source, target, label, source_handle, target_handle, created_at`

func scanEdge(row rowScanner) (Edge, error) {
	var (
		edge      Edge
		createdAt int64
	)
	if err := row.Scan(&edge.ID, &edge.BoardID, &edge.EdgeID, &edge.Source, &edge.Target, &edge.Label, &edge.SourceHandle, &edge.TargetHandle, &createdAt); err != nil {
		return Edge{}, err
	}
	edge.CreatedAt = fromMillis(createdAt)
	return edge, nil
}

func (s *Store) CreateEdge(ctx context.Context, edge Edge) (Edge, error) {
	if edge.ID == "" {
		edge.ID = util.NewID("edg")
	}
	if edge.EdgeID == "" {
		edge.EdgeID = util.ShortID("edge")
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = nowUTC()
	}
	_, err := s.exec(ctx, `
		INSERT INTO edges (`+edgeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, edge.ID, edge.BoardID, edge.EdgeID, edge.Source, edge.Target, edge.Label, edge.SourceHandle, edge.TargetHandle, toMillis(edge.CreatedAt))
	if err != nil {
		return Edge{}, fmt.Errorf("insert edge: %w", err)
	}
	return edge, nil
}

func (s *Store) GetEdge(ctx context.Context, boardID, edgeID string) (Edge, error) {
	return scanEdge(s.queryRow(ctx, `SELECT `+edgeColumns+` FROM edges WHERE board_id=? AND edge_id=?`, boardID, edgeID))
}

func (s *Store) ListEdges(ctx context.Context, boardID string) ([]Edge, error) {
	rows, err := s.query(ctx, `SELECT `+edgeColumns+` FROM edges WHERE board_id=? ORDER BY created_at, edge_id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()

	items := make([]Edge, 0)
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		items = append(items, edge)
	}
	return items, rows.Err()
}

type EdgePatch struct {
	Label        *string
	SourceHandle *string
	TargetHandle *string
}

func (s *Store) UpdateEdge(ctx context.Context, boardID, edgeID string, patch EdgePatch) (Edge, error) {
	edge, err := s.GetEdge(ctx, boardID, edgeID)
	if err != nil {
		return Edge{}, err
	}
	if patch.Label != nil {
		edge.Label = *patch.Label
	}
	if patch.SourceHandle != nil {
		edge.SourceHandle = *patch.SourceHandle
	}
	if patch.TargetHandle != nil {
		edge.TargetHandle = *patch.TargetHandle
	}
	err = s.execOne(ctx, `UPDATE edges SET label=?, source_handle=?, target_handle=? WHERE board_id=? AND edge_id=?`,
		edge.Label, edge.SourceHandle, edge.TargetHandle, boardID, edgeID)
	if err != nil {
		return Edge{}, fmt.Errorf("update edge: %w", err)
	}
	return edge, nil
}

func (s *Store) DeleteEdge(ctx context.Context, boardID, edgeID string) error {
	return s.execOne(ctx, `DELETE FROM edges WHERE board_id=? AND edge_id=?`, boardID, edgeID)
}

// DeleteEdgesTouching removes every edge with nodeID as source or target.
func (s *Store) DeleteEdgesTouching(ctx context.Context, boardID, nodeID string) (int64, error) {
	result, err := s.exec(ctx, `DELETE FROM edges WHERE board_id=? AND (source=? OR target=?)`, boardID, nodeID, nodeID)
	if err != nil {
		return 0, fmt.Errorf("delete incident edges: %w", err)
	}
	return result.RowsAffected()
}
