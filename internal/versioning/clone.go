// Package versioning turns boards into lineages of independently editable
// versions: cloning, proposal batches applied to a fresh clone, history and
// version comparison.
package versioning

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/lock"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

var (
	ErrBoardNotFound    = errors.New("board not found")
	ErrDifferentLineage = errors.New("boards belong to different lineages")
)

type Service struct {
	store  *store.Store
	locker lock.Locker
	logger *zap.Logger
}

func NewService(st *store.Store, locker lock.Locker, logger *zap.Logger) *Service {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, locker: locker, logger: logger}
}

// LineageRoot is the board every version in b's lineage descends from.
func LineageRoot(b store.Board) string {
	if b.RootBoardID != "" {
		return b.RootBoardID
	}
	return b.ID
}

// CloneBoard copies sourceID and everything scoped to it into a new board one
// minor version above the source. The copy is a single transaction.
func (s *Service) CloneBoard(ctx context.Context, sourceID, versionNote string) (store.Board, error) {
	var cloned store.Board
	err := s.inLineage(ctx, sourceID, func(tx *store.Store, source store.Board) error {
		board, err := cloneInto(ctx, tx, source, versionNote)
		if err != nil {
			return err
		}
		cloned = board
		return nil
	})
	if err != nil {
		return store.Board{}, err
	}
	s.logger.Info("board cloned",
		zap.String("source_board_id", sourceID),
		zap.String("board_id", cloned.ID),
		zap.String("version", cloned.Version),
	)
	return cloned, nil
}

// inLineage loads the source, holds the lineage lock and runs fn in a
// transaction against a fresh read of the source.
func (s *Service) inLineage(ctx context.Context, sourceID string, fn func(tx *store.Store, source store.Board) error) error {
	source, err := s.getBoard(ctx, s.store, sourceID)
	if err != nil {
		return err
	}
	unlock, err := s.locker.Lock(ctx, "lineage:"+LineageRoot(source))
	if err != nil {
		return fmt.Errorf("lock lineage: %w", err)
	}
	defer unlock()

	return s.store.WithTx(ctx, func(tx *store.Store) error {
		current, err := s.getBoard(ctx, tx, sourceID)
		if err != nil {
			return err
		}
		return fn(tx, current)
	})
}

func (s *Service) getBoard(ctx context.Context, st *store.Store, id string) (store.Board, error) {
	board, err := st.GetBoard(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Board{}, fmt.Errorf("%w: %s", ErrBoardNotFound, id)
	}
	if err != nil {
		return store.Board{}, err
	}
	return board, nil
}

func cloneInto(ctx context.Context, tx *store.Store, source store.Board, versionNote string) (store.Board, error) {
	rootID := LineageRoot(source)
	current := source.Version
	if current == "" {
		current = InitialVersion
	}
	if source.RootBoardID == "" && source.Version == "" {
		if err := tx.SetBoardLineage(ctx, source.ID, source.ID, InitialVersion); err != nil {
			return store.Board{}, err
		}
	}

	board, err := tx.CreateBoard(ctx, store.Board{
		Name:          source.Name,
		Description:   source.Description,
		OwnerID:       source.OwnerID,
		RelatedTools:  source.RelatedTools,
		Version:       NextVersion(current),
		ParentBoardID: source.ID,
		RootBoardID:   rootID,
		VersionNote:   versionNote,
	})
	if err != nil {
		return store.Board{}, err
	}

	screenshotIDs, err := copyScreenshots(ctx, tx, source.ID, board.ID)
	if err != nil {
		return store.Board{}, err
	}
	if err := copyGraph(ctx, tx, source.ID, board.ID, screenshotIDs); err != nil {
		return store.Board{}, err
	}
	if err := copyPersonas(ctx, tx, source.ID, board.ID); err != nil {
		return store.Board{}, err
	}
	if err := copyImprovements(ctx, tx, source.ID, board.ID); err != nil {
		return store.Board{}, err
	}
	return board, nil
}

// copyScreenshots duplicates screenshot records. The stored objects are shared.
func copyScreenshots(ctx context.Context, tx *store.Store, sourceID, targetID string) (map[string]string, error) {
	shots, err := tx.ListScreenshots(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]string, len(shots))
	for _, shot := range shots {
		oldID := shot.ID
		shot.ID = ""
		shot.BoardID = targetID
		created, err := tx.CreateScreenshot(ctx, shot)
		if err != nil {
			return nil, err
		}
		ids[oldID] = created.ID
	}
	return ids, nil
}

// copyGraph copies nodes and edges with their board-scoped IDs unchanged, so
// edge endpoints need no rewriting. Screenshot references in node data follow
// the copied screenshot records.
func copyGraph(ctx context.Context, tx *store.Store, sourceID, targetID string, screenshotIDs map[string]string) error {
	nodes, err := tx.ListNodes(ctx, sourceID)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		node.ID = ""
		node.BoardID = targetID
		if mapped, ok := screenshotIDs[node.Data.ScreenshotID]; ok {
			node.Data.ScreenshotID = mapped
		}
		if _, err := tx.CreateNode(ctx, node); err != nil {
			return err
		}
	}

	edges, err := tx.ListEdges(ctx, sourceID)
	if err != nil {
		return err
	}
	for _, edge := range edges {
		edge.ID = ""
		edge.BoardID = targetID
		if _, err := tx.CreateEdge(ctx, edge); err != nil {
			return err
		}
	}
	return nil
}

// copyPersonas copies personas and then only those node assignments whose
// persona was copied, with the persona reference rewritten.
func copyPersonas(ctx context.Context, tx *store.Store, sourceID, targetID string) error {
	personas, err := tx.ListPersonas(ctx, sourceID)
	if err != nil {
		return err
	}
	personaIDs := make(map[string]string, len(personas))
	for _, persona := range personas {
		oldID := persona.ID
		persona.ID = ""
		persona.BoardID = targetID
		created, err := tx.CreatePersona(ctx, persona)
		if err != nil {
			return err
		}
		personaIDs[oldID] = created.ID
	}

	links, err := tx.ListPersonaNodes(ctx, sourceID)
	if err != nil {
		return err
	}
	for _, link := range links {
		newPersonaID, ok := personaIDs[link.PersonaID]
		if !ok {
			continue
		}
		link.ID = ""
		link.BoardID = targetID
		link.PersonaID = newPersonaID
		if _, err := tx.AssignPersonaNode(ctx, link); err != nil {
			return err
		}
	}
	return nil
}

// copyImprovements copies improvements with their numbers and history, then
// the todos of copied improvements. Improvement comments stay with the source.
func copyImprovements(ctx context.Context, tx *store.Store, sourceID, targetID string) error {
	items, err := tx.ListImprovements(ctx, sourceID)
	if err != nil {
		return err
	}
	improvementIDs := make(map[string]string, len(items))
	for _, item := range items {
		oldID := item.ID
		item.ID = ""
		item.BoardID = targetID
		created, err := tx.CreateImprovement(ctx, item)
		if err != nil {
			return err
		}
		improvementIDs[oldID] = created.ID
	}

	todos, err := tx.ListBoardTodos(ctx, sourceID)
	if err != nil {
		return err
	}
	for _, todo := range todos {
		newImprovementID, ok := improvementIDs[todo.ImprovementID]
		if !ok {
			continue
		}
		todo.ID = ""
		todo.BoardID = targetID
		todo.ImprovementID = newImprovementID
		if _, err := tx.CreateTodo(ctx, todo); err != nil {
			return err
		}
	}
	return nil
}
