package search

import (
	"context"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultBoard   ResultType = "board"
	ResultNode    ResultType = "node"
	ResultComment ResultType = "comment"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	BoardID string     `json:"boardId"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
}

// Query describes a search request. An empty OwnerID searches every board.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	OwnerID    string
	Limit      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Fallback is the SQL search used while Meilisearch is unavailable.
type Fallback interface {
	SearchText(ctx context.Context, ownerID, query string, limit int) ([]store.SearchHit, error)
}

// BoardRecord is the data we index for a board.
type BoardRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     string `json:"ownerId"`
	Version     string `json:"version"`
}

// NodeRecord is the data we index for a node. ID combines the board and the
// board-scoped node id, since node ids repeat across versions.
type NodeRecord struct {
	ID        string `json:"id"`
	BoardID   string `json:"boardId"`
	BoardName string `json:"boardName"`
	NodeID    string `json:"nodeId"`
	OwnerID   string `json:"ownerId"`
	Type      string `json:"type"`
	Label     string `json:"label"`
	Text      string `json:"text"`
	Platform  string `json:"platform"`
}

// CommentRecord is the data we index for a canvas comment.
type CommentRecord struct {
	ID         string `json:"id"`
	BoardID    string `json:"boardId"`
	BoardName  string `json:"boardName"`
	NodeID     string `json:"nodeId"`
	OwnerID    string `json:"ownerId"`
	AuthorName string `json:"authorName"`
	Body       string `json:"body"`
	Resolved   bool   `json:"resolved"`
}

func NewBoardRecord(b store.Board) BoardRecord {
	return BoardRecord{ID: b.ID, Name: b.Name, Description: b.Description, OwnerID: b.OwnerID, Version: b.Version}
}

func NewNodeRecord(b store.Board, n store.Node) NodeRecord {
	return NodeRecord{
		ID:        NodeDocumentID(b.ID, n.NodeID),
		BoardID:   b.ID,
		BoardName: b.Name,
		NodeID:    n.NodeID,
		OwnerID:   b.OwnerID,
		Type:      n.Type,
		Label:     n.Data.Label,
		Text:      n.Data.Text,
		Platform:  n.Data.Platform,
	}
}

func NewCommentRecord(b store.Board, c store.Comment) CommentRecord {
	return CommentRecord{
		ID:         c.ID,
		BoardID:    b.ID,
		BoardName:  b.Name,
		NodeID:     c.NodeID,
		OwnerID:    b.OwnerID,
		AuthorName: c.AuthorName,
		Body:       c.Body,
		Resolved:   c.Resolved,
	}
}

// NodeDocumentID builds a primary key that satisfies Meilisearch's id charset.
func NodeDocumentID(boardID, nodeID string) string {
	var out []byte
	for _, c := range []byte(boardID + "__" + nodeID) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
