package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"displayName"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

type ToolReference struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Board is a journey document. Version, ParentBoardID and RootBoardID are
// empty until the board takes part in a lineage.
type Board struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	OwnerID       string          `json:"ownerId"`
	Version       string          `json:"version,omitempty"`
	ParentBoardID string          `json:"parentBoardId,omitempty"`
	RootBoardID   string          `json:"rootBoardId,omitempty"`
	VersionNote   string          `json:"versionNote,omitempty"`
	Archived      bool            `json:"archived"`
	AISummary     string          `json:"aiSummary,omitempty"`
	AISummaryAt   *time.Time      `json:"aiSummaryAt,omitempty"`
	RelatedTools  []ToolReference `json:"relatedTools"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

const (
	NodeTypeScreenshot  = "screenshot"
	NodeTypeText        = "text"
	NodeTypeAttention   = "attention"
	NodeTypeImprovement = "improvement"
)

// NodeData is the type-dependent payload of a node.
type NodeData struct {
	Label        string `json:"label,omitempty"`
	Text         string `json:"text,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	StorageKey   string `json:"storageKey,omitempty"`
	ScreenshotID string `json:"screenshotId,omitempty"`
	Platform     string `json:"platform,omitempty"`
}

// Node is a positioned canvas element. NodeID is the board-scoped identity used
// by edges, persona assignments and improvements; ID is the record identity.
type Node struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"boardId"`
	NodeID    string    `json:"nodeId"`
	Type      string    `json:"type"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Width     *float64  `json:"width,omitempty"`
	Height    *float64  `json:"height,omitempty"`
	Data      NodeData  `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type NodePosition struct {
	NodeID string  `json:"nodeId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type Edge struct {
	ID           string    `json:"id"`
	BoardID      string    `json:"boardId"`
	EdgeID       string    `json:"edgeId"`
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	Label        string    `json:"label,omitempty"`
	SourceHandle string    `json:"sourceHandle,omitempty"`
	TargetHandle string    `json:"targetHandle,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Persona struct {
	ID          string    `json:"id"`
	BoardID     string    `json:"boardId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	SortOrder   int       `json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
}

type PersonaNode struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"boardId"`
	PersonaID string    `json:"personaId"`
	NodeID    string    `json:"nodeId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is attached to the whole board when NodeID is empty.
type Comment struct {
	ID         string    `json:"id"`
	BoardID    string    `json:"boardId"`
	NodeID     string    `json:"nodeId,omitempty"`
	ParentID   string    `json:"parentId,omitempty"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Body       string    `json:"body"`
	Resolved   bool      `json:"resolved"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Screenshot struct {
	ID          string    `json:"id"`
	BoardID     string    `json:"boardId"`
	StorageKey  string    `json:"storageKey"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Platform    string    `json:"platform,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type GlobalScreenshot struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	StorageKey  string    `json:"storageKey"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Platform    string    `json:"platform,omitempty"`
	Folder      string    `json:"folder,omitempty"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
}

type BoardScreenshot struct {
	ID                 string    `json:"id"`
	BoardID            string    `json:"boardId"`
	GlobalScreenshotID string    `json:"globalScreenshotId"`
	CreatedAt          time.Time `json:"createdAt"`
}

const (
	ImprovementOpen       = "open"
	ImprovementInProgress = "in_progress"
	ImprovementClosed     = "closed"
)

type StatusChange struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedBy string    `json:"changedBy"`
	Note      string    `json:"note,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}

type Improvement struct {
	ID               string         `json:"id"`
	BoardID          string         `json:"boardId"`
	NodeID           string         `json:"nodeId"`
	Number           int            `json:"number"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Problem          string         `json:"problem"`
	Solution         string         `json:"solution"`
	ExpectedImpact   string         `json:"expectedImpact"`
	Priority         string         `json:"priority"`
	Status           string         `json:"status"`
	Assignee         string         `json:"assignee,omitempty"`
	ConnectedNodeIDs []string       `json:"connectedNodeIds"`
	StatusHistory    []StatusChange `json:"statusHistory"`
	CreatedBy        string         `json:"createdBy"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

type ImprovementTodo struct {
	ID            string    `json:"id"`
	ImprovementID string    `json:"improvementId"`
	BoardID       string    `json:"boardId"`
	Text          string    `json:"text"`
	Done          bool      `json:"done"`
	SortOrder     int       `json:"sortOrder"`
	Phase         string    `json:"phase,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type ImprovementComment struct {
	ID            string    `json:"id"`
	ImprovementID string    `json:"improvementId"`
	BoardID       string    `json:"boardId"`
	ParentID      string    `json:"parentId,omitempty"`
	AuthorID      string    `json:"authorId"`
	AuthorName    string    `json:"authorName"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Finding struct {
	Type            string   `json:"type"`
	Severity        string   `json:"severity"`
	Description     string   `json:"description"`
	AffectedNodeIDs []string `json:"affectedNodeIds"`
}

type Report struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"boardId"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	PersonaID string    `json:"personaId,omitempty"`
	Findings  []Finding `json:"findings"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type ChatMessage struct {
	ID        string          `json:"id"`
	BoardID   string          `json:"boardId"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Proposals json.RawMessage `json:"proposals,omitempty"`
	CreatedBy string          `json:"createdBy"`
	CreatedAt time.Time       `json:"createdAt"`
}

// SearchHit is a row from the SQL fallback search.
type SearchHit struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	BoardID string `json:"boardId"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}
