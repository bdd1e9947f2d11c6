package assistant

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

// BoardContext is everything the model is told about a board.
type BoardContext struct {
	Board        store.Board
	Nodes        []store.Node
	Edges        []store.Edge
	Personas     []store.Persona
	PersonaNodes []store.PersonaNode
	Comments     []store.Comment
}

// LoadContext reads the board and its collections. The collections load in
// parallel once the board is known to exist.
func LoadContext(ctx context.Context, st *store.Store, boardID string) (BoardContext, error) {
	board, err := st.GetBoard(ctx, boardID)
	if err != nil {
		return BoardContext{}, err
	}
	bc := BoardContext{Board: board}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		nodes, err := st.ListNodes(gCtx, boardID)
		bc.Nodes = nodes
		return err
	})
	g.Go(func() error {
		edges, err := st.ListEdges(gCtx, boardID)
		bc.Edges = edges
		return err
	})
	g.Go(func() error {
		personas, err := st.ListPersonas(gCtx, boardID)
		bc.Personas = personas
		return err
	})
	g.Go(func() error {
		links, err := st.ListPersonaNodes(gCtx, boardID)
		bc.PersonaNodes = links
		return err
	})
	g.Go(func() error {
		comments, err := st.ListComments(gCtx, boardID, "")
		bc.Comments = comments
		return err
	})
	if err := g.Wait(); err != nil {
		return BoardContext{}, fmt.Errorf("load board context: %w", err)
	}
	return bc, nil
}

func (bc BoardContext) hasNode(nodeID string) bool {
	return slices.ContainsFunc(bc.Nodes, func(n store.Node) bool { return n.NodeID == nodeID })
}

// Describe renders the board as plain text for a prompt. Output depends only
// on the input, so the same board always produces the same description. With
// a personaID only that persona's steps and the connections between them are
// included.
func Describe(bc BoardContext, personaID string) string {
	personaNames := make(map[string]string, len(bc.Personas))
	for _, persona := range bc.Personas {
		personaNames[persona.ID] = persona.Name
	}
	nodePersonas := make(map[string][]string)
	for _, link := range bc.PersonaNodes {
		if name, ok := personaNames[link.PersonaID]; ok {
			nodePersonas[link.NodeID] = append(nodePersonas[link.NodeID], name)
		}
	}

	include := func(string) bool { return true }
	if personaID != "" {
		focus := make(map[string]bool)
		for _, link := range bc.PersonaNodes {
			if link.PersonaID == personaID {
				focus[link.NodeID] = true
			}
		}
		include = func(nodeID string) bool { return focus[nodeID] }
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Board: %s", bc.Board.Name)
	if bc.Board.Version != "" {
		fmt.Fprintf(&sb, " (version %s)", bc.Board.Version)
	}
	sb.WriteString("\n")
	if desc := strings.TrimSpace(bc.Board.Description); desc != "" {
		fmt.Fprintf(&sb, "Description: %s\n", desc)
	}
	if name, ok := personaNames[personaID]; ok {
		fmt.Fprintf(&sb, "Focus persona: %s\n", name)
	}

	if len(bc.Personas) > 0 {
		sb.WriteString("\nPersonas:\n")
		for _, persona := range bc.Personas {
			fmt.Fprintf(&sb, "- %s", persona.Name)
			if d := strings.TrimSpace(persona.Description); d != "" {
				fmt.Fprintf(&sb, ": %s", d)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nSteps:\n")
	for _, node := range bc.Nodes {
		if !include(node.NodeID) {
			continue
		}
		fmt.Fprintf(&sb, "- [%s] (%s)", node.NodeID, node.Type)
		if label := strings.TrimSpace(node.Data.Label); label != "" {
			fmt.Fprintf(&sb, " %q", label)
		}
		if text := strings.TrimSpace(node.Data.Text); text != "" {
			fmt.Fprintf(&sb, " text: %s", oneLine(text))
		}
		if node.Data.Platform != "" {
			fmt.Fprintf(&sb, " platform: %s", node.Data.Platform)
		}
		if names := nodePersonas[node.NodeID]; len(names) > 0 {
			fmt.Fprintf(&sb, " personas: %s", strings.Join(names, ", "))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nConnections:\n")
	for _, edge := range bc.Edges {
		if !include(edge.Source) || !include(edge.Target) {
			continue
		}
		fmt.Fprintf(&sb, "- %s -> %s", edge.Source, edge.Target)
		if edge.Label != "" {
			fmt.Fprintf(&sb, " %q", edge.Label)
		}
		sb.WriteString("\n")
	}

	open := make([]store.Comment, 0)
	for _, comment := range bc.Comments {
		if !comment.Resolved && (comment.NodeID == "" || include(comment.NodeID)) {
			open = append(open, comment)
		}
	}
	if len(open) > 0 {
		sb.WriteString("\nOpen comments:\n")
		for _, comment := range open {
			target := "board"
			if comment.NodeID != "" {
				target = "[" + comment.NodeID + "]"
			}
			fmt.Fprintf(&sb, "- on %s by %s: %s\n", target, comment.AuthorName, oneLine(comment.Body))
		}
	}
	return sb.String()
}

func oneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
