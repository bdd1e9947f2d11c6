package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/rbac"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

type CreateNodeInput struct {
	NodeID string         `json:"nodeId" validate:"omitempty,max=100"`
	Type   string         `json:"type" validate:"omitempty,oneof=screenshot text attention improvement"`
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
	Width  *float64       `json:"width" validate:"omitempty,gt=0"`
	Height *float64       `json:"height" validate:"omitempty,gt=0"`
	Data   store.NodeData `json:"data"`
}

type UpdateNodeInput struct {
	Type   *string         `json:"type" validate:"omitempty,oneof=screenshot text attention improvement"`
	X      *float64        `json:"x"`
	Y      *float64        `json:"y"`
	Width  *float64        `json:"width" validate:"omitempty,gt=0"`
	Height *float64        `json:"height" validate:"omitempty,gt=0"`
	Data   *store.NodeData `json:"data"`
}

type NodePositionsInput struct {
	Positions []store.NodePosition `json:"positions" validate:"required,min=1,dive"`
}

type CreateEdgeInput struct {
	EdgeID       string `json:"edgeId" validate:"omitempty,max=100"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	Label        string `json:"label" validate:"max=500"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
}

type UpdateEdgeInput struct {
	Label        *string `json:"label" validate:"omitempty,max=500"`
	SourceHandle *string `json:"sourceHandle"`
	TargetHandle *string `json:"targetHandle"`
}

type PersonaInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Color       string `json:"color" validate:"max=32"`
	SortOrder   int    `json:"sortOrder"`
}

type UpdatePersonaInput struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Color       *string `json:"color" validate:"omitempty,max=32"`
	SortOrder   *int    `json:"sortOrder"`
}

type AssignPersonaInput struct {
	NodeID string `json:"nodeId" validate:"required"`
}

var errNodeExists = domainError(http.StatusConflict, "NODE_EXISTS", "A node with this nodeId already exists on the board", nil)

func (s *Service) ListNodes(ctx context.Context, sess Session, boardID string) ([]store.Node, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListNodes(ctx, boardID)
}

func (s *Service) CreateNode(ctx context.Context, sess Session, boardID string, input CreateNodeInput) (store.Node, error) {
	board, err := s.board(ctx, sess, boardID, rbac.ActionWrite)
	if err != nil {
		return store.Node{}, err
	}
	nodeID := strings.TrimSpace(input.NodeID)
	if nodeID != "" {
		if _, err := s.store.GetNode(ctx, boardID, nodeID); err == nil {
			return store.Node{}, errNodeExists
		} else if !errors.Is(err, sql.ErrNoRows) {
			return store.Node{}, err
		}
	}
	node, err := s.store.CreateNode(ctx, store.Node{
		BoardID: boardID,
		NodeID:  nodeID,
		Type:    input.Type,
		X:       input.X,
		Y:       input.Y,
		Width:   input.Width,
		Height:  input.Height,
		Data:    input.Data,
	})
	if err != nil {
		return store.Node{}, err
	}
	s.touch(ctx, boardID)
	s.search.IndexNode(board, node)
	return node, nil
}

func (s *Service) UpdateNode(ctx context.Context, sess Session, boardID, nodeID string, input UpdateNodeInput) (store.Node, error) {
	board, err := s.board(ctx, sess, boardID, rbac.ActionWrite)
	if err != nil {
		return store.Node{}, err
	}
	node, err := s.store.UpdateNode(ctx, boardID, nodeID, store.NodePatch{
		Type:   input.Type,
		X:      input.X,
		Y:      input.Y,
		Width:  input.Width,
		Height: input.Height,
		Data:   input.Data,
	})
	if err != nil {
		return store.Node{}, err
	}
	s.touch(ctx, boardID)
	s.search.IndexNode(board, node)
	return node, nil
}

// UpdateNodePositions commits a drag of one or more nodes.
func (s *Service) UpdateNodePositions(ctx context.Context, sess Session, boardID string, input NodePositionsInput) error {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return err
	}
	if err := s.store.UpdateNodePositions(ctx, boardID, input.Positions); err != nil {
		return err
	}
	s.touch(ctx, boardID)
	return nil
}

// DeleteNode removes the node with its edges and persona assignments.
func (s *Service) DeleteNode(ctx context.Context, sess Session, boardID, nodeID string) error {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return err
	}
	if err := s.store.DeleteNode(ctx, boardID, nodeID); err != nil {
		return err
	}
	s.touch(ctx, boardID)
	s.search.DeleteNode(boardID, nodeID)
	return nil
}

func (s *Service) ListEdges(ctx context.Context, sess Session, boardID string) ([]store.Edge, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListEdges(ctx, boardID)
}

func (s *Service) CreateEdge(ctx context.Context, sess Session, boardID string, input CreateEdgeInput) (store.Edge, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return store.Edge{}, err
	}
	for _, end := range [][2]string{{"source", input.Source}, {"target", input.Target}} {
		if _, err := s.store.GetNode(ctx, boardID, end[1]); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.Edge{}, validationError(end[0]+" does not name a node on this board", map[string]string{end[0]: end[1]})
			}
			return store.Edge{}, err
		}
	}
	edge, err := s.store.CreateEdge(ctx, store.Edge{
		BoardID:      boardID,
		EdgeID:       strings.TrimSpace(input.EdgeID),
		Source:       input.Source,
		Target:       input.Target,
		Label:        input.Label,
		SourceHandle: input.SourceHandle,
		TargetHandle: input.TargetHandle,
	})
	if err != nil {
		return store.Edge{}, err
	}
	s.touch(ctx, boardID)
	return edge, nil
}

func (s *Service) UpdateEdge(ctx context.Context, sess Session, boardID, edgeID string, input UpdateEdgeInput) (store.Edge, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return store.Edge{}, err
	}
	edge, err := s.store.UpdateEdge(ctx, boardID, edgeID, store.EdgePatch{
		Label:        input.Label,
		SourceHandle: input.SourceHandle,
		TargetHandle: input.TargetHandle,
	})
	if err != nil {
		return store.Edge{}, err
	}
	s.touch(ctx, boardID)
	return edge, nil
}

func (s *Service) DeleteEdge(ctx context.Context, sess Session, boardID, edgeID string) error {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return err
	}
	if err := s.store.DeleteEdge(ctx, boardID, edgeID); err != nil {
		return err
	}
	s.touch(ctx, boardID)
	return nil
}

func (s *Service) ListPersonas(ctx context.Context, sess Session, boardID string) ([]store.Persona, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListPersonas(ctx, boardID)
}

func (s *Service) CreatePersona(ctx context.Context, sess Session, boardID string, input PersonaInput) (store.Persona, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return store.Persona{}, err
	}
	return s.store.CreatePersona(ctx, store.Persona{
		BoardID:     boardID,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Color:       input.Color,
		SortOrder:   input.SortOrder,
	})
}

// persona loads personaID and checks it belongs to boardID.
func (s *Service) persona(ctx context.Context, boardID, personaID string) (store.Persona, error) {
	persona, err := s.store.GetPersona(ctx, personaID)
	if err != nil {
		return store.Persona{}, err
	}
	if persona.BoardID != boardID {
		return store.Persona{}, errNotFound
	}
	return persona, nil
}

func (s *Service) UpdatePersona(ctx context.Context, sess Session, boardID, personaID string, input UpdatePersonaInput) (store.Persona, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return store.Persona{}, err
	}
	if _, err := s.persona(ctx, boardID, personaID); err != nil {
		return store.Persona{}, err
	}
	return s.store.UpdatePersona(ctx, personaID, store.PersonaPatch{
		Name:        input.Name,
		Description: input.Description,
		Color:       input.Color,
		SortOrder:   input.SortOrder,
	})
}

func (s *Service) DeletePersona(ctx context.Context, sess Session, boardID, personaID string) error {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return err
	}
	if _, err := s.persona(ctx, boardID, personaID); err != nil {
		return err
	}
	return s.store.DeletePersona(ctx, personaID)
}

func (s *Service) ListPersonaNodes(ctx context.Context, sess Session, boardID string) ([]store.PersonaNode, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListPersonaNodes(ctx, boardID)
}

// AssignPersona links a persona to a node. Repeating the call returns the
// existing link.
func (s *Service) AssignPersona(ctx context.Context, sess Session, boardID, personaID string, input AssignPersonaInput) (store.PersonaNode, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return store.PersonaNode{}, err
	}
	if _, err := s.persona(ctx, boardID, personaID); err != nil {
		return store.PersonaNode{}, err
	}
	if _, err := s.store.GetNode(ctx, boardID, input.NodeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.PersonaNode{}, validationError("nodeId does not name a node on this board", nil)
		}
		return store.PersonaNode{}, err
	}
	return s.store.AssignPersonaNode(ctx, store.PersonaNode{
		BoardID:   boardID,
		PersonaID: personaID,
		NodeID:    input.NodeID,
	})
}

func (s *Service) UnassignPersona(ctx context.Context, sess Session, boardID, personaID, nodeID string) error {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return err
	}
	if _, err := s.persona(ctx, boardID, personaID); err != nil {
		return err
	}
	return s.store.UnassignPersonaNode(ctx, personaID, nodeID)
}
