package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/util"
)

const personaColumns = `id, board_id, name, description, color, sort_order, created_at`

func scanPersona(row rowScanner) (Persona, error) {
	var (
		persona   Persona
		createdAt int64
	)
	if err := row.Scan(&persona.ID, &persona.BoardID, &persona.Name, &persona.Description, &persona.Color, &persona.SortOrder, &createdAt); err != nil {
		return Persona{}, err
	}
	persona.CreatedAt = fromMillis(createdAt)
	return persona, nil
}

func (s *Store) CreatePersona(ctx context.Context, persona Persona) (Persona, error) {
	if persona.ID == "" {
		persona.ID = util.NewID("prs")
	}
	if persona.CreatedAt.IsZero() {
		persona.CreatedAt = nowUTC()
	}
	_, err := s.exec(ctx, `
		INSERT INTO personas (`+personaColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, persona.ID, persona.BoardID, persona.Name, persona.Description, persona.Color, persona.SortOrder, toMillis(persona.CreatedAt))
	if err != nil {
		return Persona{}, fmt.Errorf("insert persona: %w", err)
	}
	return persona, nil
}

func (s *Store) GetPersona(ctx context.Context, id string) (Persona, error) {
	return scanPersona(s.queryRow(ctx, `SELECT `+personaColumns+` FROM personas WHERE id=?`, id))
}

func (s *Store) ListPersonas(ctx context.Context, boardID string) ([]Persona, error) {
	rows, err := s.query(ctx, `SELECT `+personaColumns+` FROM personas WHERE board_id=? ORDER BY sort_order, created_at`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	defer rows.Close()

	items := make([]Persona, 0)
	for rows.Next() {
		persona, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("scan persona: %w", err)
		}
		items = append(items, persona)
	}
	return items, rows.Err()
}

type PersonaPatch struct {
	Name        *string
	Description *string
	Color       *string
	SortOrder   *int
}

func (s *Store) UpdatePersona(ctx context.Context, id string, patch PersonaPatch) (Persona, error) {
	persona, err := s.GetPersona(ctx, id)
	if err != nil {
		return Persona{}, err
	}
	if patch.Name != nil {
		persona.Name = *patch.Name
	}
	if patch.Description != nil {
		persona.Description = *patch.Description
	}
	if patch.Color != nil {
		persona.Color = *patch.Color
	}
	if patch.SortOrder != nil {
		persona.SortOrder = *patch.SortOrder
	}
	err = s.execOne(ctx, `UPDATE personas SET name=?, description=?, color=?, sort_order=? WHERE id=?`,
		persona.Name, persona.Description, persona.Color, persona.SortOrder, id)
	if err != nil {
		return Persona{}, fmt.Errorf("update persona: %w", err)
	}
	return persona, nil
}

// DeletePersona removes a persona and its node assignments.
func (s *Store) DeletePersona(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if err := tx.execOne(ctx, `DELETE FROM personas WHERE id=?`, id); err != nil {
			return err
		}
		if _, err := tx.exec(ctx, `DELETE FROM persona_nodes WHERE persona_id=?`, id); err != nil {
			return fmt.Errorf("delete persona nodes: %w", err)
		}
		return nil
	})
}

const personaNodeColumns = `id, board_id, persona_id, node_id, created_at`

func scanPersonaNode(row rowScanner) (PersonaNode, error) {
	var (
		link      PersonaNode
		createdAt int64
	)
	if err := row.Scan(&link.ID, &link.BoardID, &link.PersonaID, &link.NodeID, &createdAt); err != nil {
		return PersonaNode{}, err
	}
	link.CreatedAt = fromMillis(createdAt)
	return link, nil
}

// AssignPersonaNode links a persona to a node. Linking an existing pair returns
// the existing record.
func (s *Store) AssignPersonaNode(ctx context.Context, link PersonaNode) (PersonaNode, error) {
	existing, err := scanPersonaNode(s.queryRow(ctx, `SELECT `+personaNodeColumns+` FROM persona_nodes WHERE persona_id=? AND node_id=?`, link.PersonaID, link.NodeID))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return PersonaNode{}, fmt.Errorf("lookup persona node: %w", err)
	}
	if link.ID == "" {
		link.ID = util.NewID("pnd")
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = nowUTC()
	}
	_, err = s.exec(ctx, `
		INSERT INTO persona_nodes (`+personaNodeColumns+`)
		VALUES (?, ?, ?, ?, ?)
	`, link.ID, link.BoardID, link.PersonaID, link.NodeID, toMillis(link.CreatedAt))
	if err != nil {
		return PersonaNode{}, fmt.Errorf("insert persona node: %w", err)
	}
	return link, nil
}

func (s *Store) ListPersonaNodes(ctx context.Context, boardID string) ([]PersonaNode, error) {
	rows, err := s.query(ctx, `SELECT `+personaNodeColumns+` FROM persona_nodes WHERE board_id=? ORDER BY created_at, id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list persona nodes: %w", err)
	}
	defer rows.Close()

	items := make([]PersonaNode, 0)
	for rows.Next() {
		link, err := scanPersonaNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan persona node: %w", err)
		}
		items = append(items, link)
	}
	return items, rows.Err()
}

func (s *Store) UnassignPersonaNode(ctx context.Context, personaID, nodeID string) error {
	return s.execOne(ctx, `DELETE FROM persona_nodes WHERE persona_id=? AND node_id=?`, personaID, nodeID)
}
