package level

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/svc/jobs"
)

// Indexer stores search documents. *opensearch.Indexer satisfies it.
type Indexer interface {
	Put(ctx context.Context, id string, doc any) error
}

// IndexDocument is the search representation of a published level.
type IndexDocument struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	GameID           string     `json:"gameId"`
	Name             string     `json:"name"`
	Slug             string     `json:"slug"`
	Width            int        `json:"width"`
	Height           int        `json:"height"`
	LeastMoves       int        `json:"leastMoves"`
	CalcPlayAttempts int        `json:"calcPlayAttempts"`
	Completions      int        `json:"completions"`
	BestMoves        int        `json:"bestMoves"`
	ImageURL         string     `json:"imageUrl,omitempty"`
	PublishedAt      *time.Time `json:"publishedAt,omitempty"`
}

// IndexMapping is passed to opensearch.Indexer.EnsureIndex on startup.
var IndexMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":               map[string]string{"type": "keyword"},
			"userId":           map[string]string{"type": "keyword"},
			"gameId":           map[string]string{"type": "keyword"},
			"name":             map[string]string{"type": "text"},
			"slug":             map[string]string{"type": "keyword"},
			"calcPlayAttempts": map[string]string{"type": "integer"},
			"completions":      map[string]string{"type": "integer"},
			"publishedAt":      map[string]string{"type": "date"},
		},
	},
}

// IndexHandler handles REFRESH_INDEX_CALCULATIONS. A nil idx completes
// messages without indexing.
func (p *Publisher) IndexHandler(idx Indexer) queue.Handler {
	return queue.NewTaskHandler(jobs.TypeRefreshIndexCalculations,
		func(ctx context.Context, msg *queue.Message, payload jobs.LevelPayload) error {
			if idx == nil {
				msg.AppendLog("search indexing disabled")
				return nil
			}
			doc, err := p.indexDocument(ctx, payload.LevelID)
			if err != nil {
				return err
			}
			if doc == nil {
				msg.AppendLog("level " + payload.LevelID + " is a draft, not indexed")
				return nil
			}
			if err := idx.Put(ctx, doc.ID, doc); err != nil {
				return err
			}
			msg.AppendLog("indexed level " + doc.ID)
			return nil
		})
}

func (p *Publisher) indexDocument(ctx context.Context, levelID string) (*IndexDocument, error) {
	lvl, err := p.jobLevel(ctx, levelID)
	if err != nil {
		return nil, err
	}
	if lvl.IsDraft {
		return nil, nil
	}
	records, err := p.store.ListRecords(ctx, nil, levelID)
	if err != nil {
		return nil, err
	}

	doc := &IndexDocument{
		ID:               lvl.ID,
		UserID:           lvl.UserID,
		GameID:           lvl.GameID,
		Name:             lvl.Name,
		Slug:             lvl.Slug,
		Width:            lvl.Width,
		Height:           lvl.Height,
		LeastMoves:       lvl.LeastMoves,
		CalcPlayAttempts: lvl.CalcPlayAttempts,
		Completions:      len(records),
		ImageURL:         lvl.ImageURL,
		PublishedAt:      lvl.PublishedAt,
	}
	// records are sorted by moves ascending
	if len(records) > 0 {
		doc.BestMoves = records[0].Moves
	}
	return doc, nil
}

// jobLevel loads a level for a background job. A missing level cannot
// appear on retry, so it fails permanently.
func (p *Publisher) jobLevel(ctx context.Context, id string) (*Level, error) {
	lvl, err := p.store.GetLevel(ctx, nil, id)
	if errors.Is(err, ErrLevelNotFound) {
		return nil, queue.Permanent(err)
	}
	return lvl, err
}
