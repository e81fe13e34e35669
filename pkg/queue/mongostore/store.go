package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	lqmongo "github.com/dmitrymomot/levelqueue/pkg/mongo"
	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
)

// DefaultCollection holds queue messages unless overridden.
const DefaultCollection = "queueMessages"

var ErrStorage = errors.New("queue mongo storage failure")

// Store implements queue.Repository.
type Store struct {
	coll *mongo.Collection
}

var _ queue.Repository = (*Store)(nil)

// New returns a store over collection of db. An empty collection uses
// DefaultCollection.
func New(db *mongo.Database, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{coll: db.Collection(collection)}
}

type document struct {
	ID                    string     `bson:"_id"`
	DedupeKey             string     `bson:"dedupeKey,omitempty"`
	Type                  string     `bson:"type"`
	Payload               string     `bson:"message"`
	Priority              int        `bson:"priority"`
	State                 string     `bson:"state"`
	RunAt                 time.Time  `bson:"runAt"`
	IsProcessing          bool       `bson:"isProcessing"`
	ProcessingAttempts    int        `bson:"processingAttempts"`
	ProcessingStartedAt   *time.Time `bson:"processingStartedAt,omitempty"`
	ProcessingCompletedAt *time.Time `bson:"processingCompletedAt,omitempty"`
	Log                   []string   `bson:"log"`
	CreatedAt             time.Time  `bson:"createdAt"`
	UpdatedAt             time.Time  `bson:"updatedAt"`
}

func (d *document) message() *queue.Message {
	m := &queue.Message{
		ID:                 d.ID,
		DedupeKey:          d.DedupeKey,
		Type:               queue.MessageType(d.Type),
		Payload:            d.Payload,
		Priority:           queue.Priority(d.Priority),
		State:              queue.State(d.State),
		RunAt:              d.RunAt.UTC(),
		IsProcessing:       d.IsProcessing,
		ProcessingAttempts: d.ProcessingAttempts,
		Log:                d.Log,
		CreatedAt:          d.CreatedAt.UTC(),
		UpdatedAt:          d.UpdatedAt.UTC(),
	}
	if d.ProcessingStartedAt != nil {
		t := d.ProcessingStartedAt.UTC()
		m.ProcessingStartedAt = &t
	}
	if d.ProcessingCompletedAt != nil {
		t := d.ProcessingCompletedAt.UTC()
		m.ProcessingCompletedAt = &t
	}
	if m.Log == nil {
		m.Log = []string{}
	}
	return m
}

// EnsureIndexes creates the dedupe, due-scan and stale-lock indexes. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "dedupeKey", Value: 1}, {Key: "type", Value: 1}, {Key: "message", Value: 1}},
			Options: options.Index().
				SetName("pending_dedupe").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{
					{Key: "state", Value: string(queue.StatePending)},
					{Key: "dedupeKey", Value: bson.D{{Key: "$exists", Value: true}}},
				}),
		},
		{
			Keys: bson.D{
				{Key: "state", Value: 1},
				{Key: "priority", Value: -1},
				{Key: "runAt", Value: 1},
				{Key: "createdAt", Value: 1},
			},
			Options: options.Index().SetName("due_scan"),
		},
		{
			Keys: bson.D{{Key: "state", Value: 1}, {Key: "processingStartedAt", Value: 1}},
			Options: options.Index().
				SetName("stale_scan").
				SetPartialFilterExpression(bson.D{{Key: "state", Value: string(queue.StateProcessing)}}),
		},
	})
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

// Upsert implements queue.EnqueuerRepository.
func (s *Store) Upsert(ctx context.Context, tx txn.Tx, msg *queue.Message) (string, error) {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return "", err
	}

	if msg.DedupeKey == "" {
		if _, err := s.coll.InsertOne(ctx, newDocument(msg)); err != nil {
			return "", errors.Join(ErrStorage, err)
		}
		return msg.ID, nil
	}

	filter := bson.D{
		{Key: "dedupeKey", Value: msg.DedupeKey},
		{Key: "type", Value: string(msg.Type)},
		{Key: "message", Value: msg.Payload},
		{Key: "state", Value: string(queue.StatePending)},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "runAt", Value: msg.RunAt},
			{Key: "priority", Value: int(msg.Priority)},
			{Key: "updatedAt", Value: msg.UpdatedAt},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "_id", Value: msg.ID},
			{Key: "isProcessing", Value: false},
			{Key: "processingAttempts", Value: 0},
			{Key: "log", Value: bson.A{}},
			{Key: "createdAt", Value: msg.CreatedAt},
		}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: "_id", Value: 1}})

	// Two concurrent upserts can both miss the filter; the loser hits the
	// partial unique index and the retry matches the winner's document.
	for attempt := 0; ; attempt++ {
		var out struct {
			ID string `bson:"_id"`
		}
		err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
		if err == nil {
			return out.ID, nil
		}
		if !mongo.IsDuplicateKeyError(err) || attempt > 0 || tx != nil {
			return "", errors.Join(ErrStorage, err)
		}
	}
}

func newDocument(msg *queue.Message) *document {
	log := msg.Log
	if log == nil {
		log = []string{}
	}
	return &document{
		ID:                 msg.ID,
		DedupeKey:          msg.DedupeKey,
		Type:               string(msg.Type),
		Payload:            msg.Payload,
		Priority:           int(msg.Priority),
		State:              string(queue.StatePending),
		RunAt:              msg.RunAt,
		ProcessingAttempts: 0,
		Log:                log,
		CreatedAt:          msg.CreatedAt,
		UpdatedAt:          msg.UpdatedAt,
	}
}

// dueFilter matches PENDING messages with runAt reached and, unless
// staleBefore is zero, PROCESSING messages whose lock has expired.
func dueFilter(now, staleBefore time.Time) bson.D {
	pending := bson.D{
		{Key: "state", Value: string(queue.StatePending)},
		{Key: "runAt", Value: bson.D{{Key: "$lte", Value: now}}},
	}
	if staleBefore.IsZero() {
		return pending
	}
	return bson.D{{Key: "$or", Value: bson.A{
		pending,
		bson.D{
			{Key: "state", Value: string(queue.StateProcessing)},
			{Key: "processingStartedAt", Value: bson.D{{Key: "$lt", Value: staleBefore}}},
		},
	}}}
}

// FindDue implements queue.DispatcherRepository.
func (s *Store) FindDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*queue.Message, error) {
	filter := dueFilter(now, staleBefore)
	opts := options.Find().SetSort(bson.D{
		{Key: "priority", Value: -1},
		{Key: "runAt", Value: 1},
		{Key: "createdAt", Value: 1},
	})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Join(ErrStorage, err)
	}

	out := make([]*queue.Message, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].message())
	}
	return out, nil
}

// Claim implements queue.DispatcherRepository.
func (s *Store) Claim(ctx context.Context, id string, now, staleBefore time.Time) (*queue.Message, error) {
	filter := append(bson.D{{Key: "_id", Value: id}}, dueFilter(now, staleBefore)...)
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "state", Value: string(queue.StateProcessing)},
			{Key: "isProcessing", Value: true},
			{Key: "processingStartedAt", Value: now},
			{Key: "updatedAt", Value: now},
		}},
		{Key: "$inc", Value: bson.D{{Key: "processingAttempts", Value: 1}}},
	}

	var doc document
	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, queue.ErrNotClaimed
	}
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return doc.message(), nil
}

// Complete implements queue.DispatcherRepository.
func (s *Store) Complete(ctx context.Context, id string, now time.Time, lines []string) error {
	return s.finish(ctx, id, queue.StateCompleted, now, lines)
}

// Fail implements queue.DispatcherRepository.
func (s *Store) Fail(ctx context.Context, id string, now time.Time, lines []string) error {
	return s.finish(ctx, id, queue.StateFailed, now, lines)
}

func (s *Store) finish(ctx context.Context, id string, state queue.State, now time.Time, lines []string) error {
	return s.updateProcessing(ctx, id, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "state", Value: string(state)},
			{Key: "isProcessing", Value: false},
			{Key: "processingCompletedAt", Value: now},
			{Key: "updatedAt", Value: now},
		}},
		{Key: "$push", Value: pushLines(lines)},
	})
}

// Retry implements queue.DispatcherRepository.
func (s *Store) Retry(ctx context.Context, id string, runAt, now time.Time, lines []string) error {
	return s.updateProcessing(ctx, id, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "state", Value: string(queue.StatePending)},
			{Key: "isProcessing", Value: false},
			{Key: "runAt", Value: runAt},
			{Key: "updatedAt", Value: now},
		}},
		{Key: "$push", Value: pushLines(lines)},
	})
}

func (s *Store) updateProcessing(ctx context.Context, id string, update bson.D) error {
	res, err := s.coll.UpdateOne(ctx, bson.D{
		{Key: "_id", Value: id},
		{Key: "state", Value: string(queue.StateProcessing)},
	}, update)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if res.MatchedCount == 0 {
		return s.missing(ctx, id, queue.ErrNotProcessing)
	}
	return nil
}

// Get implements queue.Repository.
func (s *Store) Get(ctx context.Context, tx txn.Tx, id string) (*queue.Message, error) {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return nil, err
	}

	var doc document
	err = s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, queue.ErrMessageNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return doc.message(), nil
}

// Cancel implements queue.Repository.
func (s *Store) Cancel(ctx context.Context, tx txn.Tx, id string, now time.Time, line string) error {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return err
	}

	res, err := s.coll.UpdateOne(ctx, bson.D{
		{Key: "_id", Value: id},
		{Key: "state", Value: string(queue.StatePending)},
	}, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "state", Value: string(queue.StateFailed)},
			{Key: "isProcessing", Value: false},
			{Key: "processingCompletedAt", Value: now},
			{Key: "updatedAt", Value: now},
		}},
		{Key: "$push", Value: bson.D{{Key: "log", Value: line}}},
	})
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if res.MatchedCount == 0 {
		return s.missing(ctx, id, queue.ErrNotPending)
	}
	return nil
}

// missing tells a vanished message apart from one in the wrong state.
func (s *Store) missing(ctx context.Context, id string, stateErr error) error {
	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if n == 0 {
		return queue.ErrMessageNotFound
	}
	return fmt.Errorf("%w: %s", stateErr, id)
}

func pushLines(lines []string) bson.D {
	if lines == nil {
		lines = []string{}
	}
	return bson.D{{Key: "log", Value: bson.D{{Key: "$each", Value: lines}}}}
}
