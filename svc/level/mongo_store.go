package level

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	lqmongo "github.com/dmitrymomot/levelqueue/pkg/mongo"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
)

// MongoStore implements Store over the levels, records, stats, userStats
// and achievements collections.
type MongoStore struct {
	levels       *mongo.Collection
	records      *mongo.Collection
	stats        *mongo.Collection
	userStats    *mongo.Collection
	achievements *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		levels:       db.Collection("levels"),
		records:      db.Collection("records"),
		stats:        db.Collection("stats"),
		userStats:    db.Collection("userStats"),
		achievements: db.Collection("achievements"),
	}
}

type levelDocument struct {
	ID                      string     `bson:"_id"`
	UserID                  string     `bson:"userId"`
	GameID                  string     `bson:"gameId"`
	Name                    string     `bson:"name"`
	Slug                    string     `bson:"slug"`
	Data                    []string   `bson:"data"`
	Width                   int        `bson:"width"`
	Height                  int        `bson:"height"`
	LeastMoves              int        `bson:"leastMoves"`
	IsDraft                 bool       `bson:"isDraft"`
	ScheduledQueueMessageID *string    `bson:"scheduledQueueMessageId"`
	CalcPlayAttempts        int        `bson:"calcPlayAttempts"`
	ImageURL                string     `bson:"imageUrl,omitempty"`
	PublishedAt             *time.Time `bson:"publishedAt,omitempty"`
	CreatedAt               time.Time  `bson:"createdAt"`
	UpdatedAt               time.Time  `bson:"updatedAt"`
}

func (d *levelDocument) level() *Level {
	l := &Level{
		ID:               d.ID,
		UserID:           d.UserID,
		GameID:           d.GameID,
		Name:             d.Name,
		Slug:             d.Slug,
		Data:             d.Data,
		Width:            d.Width,
		Height:           d.Height,
		LeastMoves:       d.LeastMoves,
		IsDraft:          d.IsDraft,
		CalcPlayAttempts: d.CalcPlayAttempts,
		ImageURL:         d.ImageURL,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
	if d.ScheduledQueueMessageID != nil {
		l.ScheduledQueueMessageID = *d.ScheduledQueueMessageID
	}
	if d.PublishedAt != nil {
		t := d.PublishedAt.UTC()
		l.PublishedAt = &t
	}
	return l
}

func newLevelDocument(l *Level) *levelDocument {
	d := &levelDocument{
		ID:               l.ID,
		UserID:           l.UserID,
		GameID:           l.GameID,
		Name:             l.Name,
		Slug:             l.Slug,
		Data:             l.Data,
		Width:            l.Width,
		Height:           l.Height,
		LeastMoves:       l.LeastMoves,
		IsDraft:          l.IsDraft,
		CalcPlayAttempts: l.CalcPlayAttempts,
		ImageURL:         l.ImageURL,
		PublishedAt:      l.PublishedAt,
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
	if d.Data == nil {
		d.Data = []string{}
	}
	if l.ScheduledQueueMessageID != "" {
		id := l.ScheduledQueueMessageID
		d.ScheduledQueueMessageID = &id
	}
	return d
}

type recordDocument struct {
	ID        string    `bson:"_id"`
	LevelID   string    `bson:"levelId"`
	UserID    string    `bson:"userId"`
	Moves     int       `bson:"moves"`
	Replay    string    `bson:"replay,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

type statDocument struct {
	LevelID   string    `bson:"levelId"`
	UserID    string    `bson:"userId"`
	Attempts  int       `bson:"attempts"`
	Completed bool      `bson:"completed"`
	BestMoves int       `bson:"bestMoves"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type userStatsDocument struct {
	UserID          string    `bson:"_id"`
	LevelsCreated   int       `bson:"levelsCreated"`
	LevelsCompleted int       `bson:"levelsCompleted"`
	UpdatedAt       time.Time `bson:"updatedAt"`
}

type achievementDocument struct {
	UserID   string    `bson:"userId"`
	Type     string    `bson:"type"`
	EarnedAt time.Time `bson:"earnedAt"`
}

// EnsureIndexes creates the lookup and uniqueness indexes. It is idempotent.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.levels, []mongo.IndexModel{
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "isDraft", Value: 1}}},
		}},
		{s.records, []mongo.IndexModel{
			{Keys: bson.D{{Key: "levelId", Value: 1}, {Key: "moves", Value: 1}}},
		}},
		{s.stats, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "levelId", Value: 1}, {Key: "userId", Value: 1}},
				Options: mongoopts.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "completed", Value: 1}}},
		}},
		{s.achievements, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "type", Value: 1}},
				Options: mongoopts.Index().SetUnique(true),
			},
		}},
	}
	for _, spec := range specs {
		if _, err := spec.coll.Indexes().CreateMany(ctx, spec.models); err != nil {
			return errors.Join(ErrStoreFailed, err)
		}
	}
	return nil
}

func (s *MongoStore) GetLevel(ctx context.Context, tx txn.Tx, id string) (*Level, error) {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return nil, err
	}
	var doc levelDocument
	err = s.levels.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrLevelNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	return doc.level(), nil
}

func (s *MongoStore) CreateLevel(ctx context.Context, tx txn.Tx, lvl *Level) error {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return err
	}
	if _, err := s.levels.InsertOne(ctx, newLevelDocument(lvl)); err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (s *MongoStore) UpdateDraft(ctx context.Context, tx txn.Tx, id string, upd DraftUpdate, now time.Time) (*Level, error) {
	set := bson.D{{Key: "updatedAt", Value: now}}
	if upd.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *upd.Name})
	}
	if upd.Data != nil {
		data := *upd.Data
		width := 0
		if len(data) > 0 {
			width = len(data[0])
		}
		set = append(set,
			bson.E{Key: "data", Value: data},
			bson.E{Key: "width", Value: width},
			bson.E{Key: "height", Value: len(data)},
		)
	}
	if upd.LeastMoves != nil {
		set = append(set, bson.E{Key: "leastMoves", Value: *upd.LeastMoves})
	}

	var doc levelDocument
	err := s.conditional(ctx, tx, id, bson.D{
		{Key: "isDraft", Value: true},
		{Key: "scheduledQueueMessageId", Value: nil},
	}, bson.D{{Key: "$set", Value: set}}, &doc, func(l *Level) error {
		if !l.IsDraft {
			return ErrNotDraft
		}
		return ErrLevelScheduled
	})
	if err != nil {
		return nil, err
	}
	return doc.level(), nil
}

func (s *MongoStore) SetScheduledMessage(ctx context.Context, tx txn.Tx, id, msgID string, now time.Time) error {
	return s.conditional(ctx, tx, id, bson.D{
		{Key: "isDraft", Value: true},
		{Key: "scheduledQueueMessageId", Value: nil},
	}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "scheduledQueueMessageId", Value: msgID},
		{Key: "updatedAt", Value: now},
	}}}, nil, func(l *Level) error {
		if !l.IsDraft {
			return ErrNotDraft
		}
		return ErrAlreadyScheduled
	})
}

func (s *MongoStore) ClearScheduledMessage(ctx context.Context, tx txn.Tx, id, msgID string, now time.Time) error {
	if msgID == "" {
		return ErrScheduleMismatch
	}
	return s.conditional(ctx, tx, id, bson.D{
		{Key: "scheduledQueueMessageId", Value: msgID},
	}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "scheduledQueueMessageId", Value: nil},
		{Key: "updatedAt", Value: now},
	}}}, nil, func(*Level) error { return ErrScheduleMismatch })
}

func (s *MongoStore) MarkPublished(ctx context.Context, tx txn.Tx, id string, now time.Time) error {
	return s.conditional(ctx, tx, id, bson.D{
		{Key: "isDraft", Value: true},
	}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "isDraft", Value: false},
		{Key: "scheduledQueueMessageId", Value: nil},
		{Key: "publishedAt", Value: now},
		{Key: "updatedAt", Value: now},
	}}}, nil, func(*Level) error { return ErrNotDraft })
}

func (s *MongoStore) SetCalcPlayAttempts(ctx context.Context, tx txn.Tx, id string, n int, now time.Time) error {
	return s.setFields(ctx, tx, id, bson.D{
		{Key: "calcPlayAttempts", Value: n},
		{Key: "updatedAt", Value: now},
	})
}

func (s *MongoStore) SetImageURL(ctx context.Context, tx txn.Tx, id, url string, now time.Time) error {
	return s.setFields(ctx, tx, id, bson.D{
		{Key: "imageUrl", Value: url},
		{Key: "updatedAt", Value: now},
	})
}

func (s *MongoStore) ListPublishedLevelIDs(ctx context.Context, tx txn.Tx) ([]string, error) {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return nil, err
	}
	cur, err := s.levels.Find(ctx, bson.D{{Key: "isDraft", Value: false}},
		mongoopts.Find().
			SetProjection(bson.D{{Key: "_id", Value: 1}}).
			SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (s *MongoStore) CountPublishedByUser(ctx context.Context, tx txn.Tx, userID string) (int, error) {
	return s.count(ctx, tx, s.levels, bson.D{
		{Key: "userId", Value: userID},
		{Key: "isDraft", Value: false},
	})
}

func (s *MongoStore) CreateRecord(ctx context.Context, tx txn.Tx, rec *Record) error {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return err
	}
	_, err = s.records.InsertOne(ctx, recordDocument{
		ID:        rec.ID,
		LevelID:   rec.LevelID,
		UserID:    rec.UserID,
		Moves:     rec.Moves,
		Replay:    rec.Replay,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (s *MongoStore) ListRecords(ctx context.Context, tx txn.Tx, levelID string) ([]*Record, error) {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return nil, err
	}
	cur, err := s.records.Find(ctx, bson.D{{Key: "levelId", Value: levelID}},
		mongoopts.Find().SetSort(bson.D{{Key: "moves", Value: 1}, {Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	var docs []recordDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	out := make([]*Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, &Record{
			ID:        d.ID,
			LevelID:   d.LevelID,
			UserID:    d.UserID,
			Moves:     d.Moves,
			Replay:    d.Replay,
			CreatedAt: d.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func (s *MongoStore) UpsertStat(ctx context.Context, tx txn.Tx, st *Stat) error {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return err
	}
	_, err = s.stats.ReplaceOne(ctx,
		bson.D{{Key: "levelId", Value: st.LevelID}, {Key: "userId", Value: st.UserID}},
		statDocument(*st),
		mongoopts.Replace().SetUpsert(true))
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (s *MongoStore) GetStat(ctx context.Context, tx txn.Tx, levelID, userID string) (*Stat, error) {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return nil, err
	}
	var doc statDocument
	err = s.stats.FindOne(ctx, bson.D{{Key: "levelId", Value: levelID}, {Key: "userId", Value: userID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrStatNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	st := Stat(doc)
	st.UpdatedAt = st.UpdatedAt.UTC()
	return &st, nil
}

func (s *MongoStore) SumPlayAttempts(ctx context.Context, tx txn.Tx, levelID string) (int, error) {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return 0, err
	}
	cur, err := s.stats.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "levelId", Value: levelID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$attempts"}}},
		}}},
	})
	if err != nil {
		return 0, errors.Join(ErrStoreFailed, err)
	}
	var out []struct {
		Total int `bson:"total"`
	}
	if err := cur.All(ctx, &out); err != nil {
		return 0, errors.Join(ErrStoreFailed, err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Total, nil
}

func (s *MongoStore) CountCompletedByUser(ctx context.Context, tx txn.Tx, userID string) (int, error) {
	return s.count(ctx, tx, s.stats, bson.D{
		{Key: "userId", Value: userID},
		{Key: "completed", Value: true},
	})
}

func (s *MongoStore) SaveUserStats(ctx context.Context, tx txn.Tx, st *UserStats) error {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return err
	}
	_, err = s.userStats.ReplaceOne(ctx, bson.D{{Key: "_id", Value: st.UserID}},
		userStatsDocument(*st), mongoopts.Replace().SetUpsert(true))
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (s *MongoStore) GetUserStats(ctx context.Context, tx txn.Tx, userID string) (*UserStats, error) {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return nil, err
	}
	var doc userStatsDocument
	err = s.userStats.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &UserStats{UserID: userID}, nil
	}
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	st := UserStats(doc)
	st.UpdatedAt = st.UpdatedAt.UTC()
	return &st, nil
}

func (s *MongoStore) AddAchievements(ctx context.Context, tx txn.Tx, userID string, types []AchievementType, now time.Time) ([]AchievementType, error) {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return nil, err
	}
	var added []AchievementType
	for _, t := range types {
		res, err := s.achievements.UpdateOne(ctx,
			bson.D{{Key: "userId", Value: userID}, {Key: "type", Value: string(t)}},
			bson.D{{Key: "$setOnInsert", Value: achievementDocument{UserID: userID, Type: string(t), EarnedAt: now}}},
			mongoopts.UpdateOne().SetUpsert(true))
		if err != nil {
			return nil, errors.Join(ErrStoreFailed, err)
		}
		if res.UpsertedCount > 0 {
			added = append(added, t)
		}
	}
	return added, nil
}

func (s *MongoStore) ListAchievements(ctx context.Context, tx txn.Tx, userID string) ([]Achievement, error) {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return nil, err
	}
	cur, err := s.achievements.Find(ctx, bson.D{{Key: "userId", Value: userID}},
		mongoopts.Find().SetSort(bson.D{{Key: "earnedAt", Value: 1}}))
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	var docs []achievementDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	out := make([]Achievement, 0, len(docs))
	for _, d := range docs {
		out = append(out, Achievement{UserID: d.UserID, Type: AchievementType(d.Type), EarnedAt: d.EarnedAt.UTC()})
	}
	return out, nil
}

// conditional applies update to level id when cond also matches. On a miss
// it reloads the level and lets explain name the failed condition. A non-nil
// out receives the updated document.
func (s *MongoStore) conditional(ctx context.Context, tx txn.Tx, id string, cond, update bson.D, out *levelDocument, explain func(*Level) error) error {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return err
	}

	filter := append(bson.D{{Key: "_id", Value: id}}, cond...)
	if out == nil {
		out = &levelDocument{}
	}
	err = s.levels.FindOneAndUpdate(ctx, filter, update,
		mongoopts.FindOneAndUpdate().SetReturnDocument(mongoopts.After),
	).Decode(out)
	if err == nil {
		return nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return errors.Join(ErrStoreFailed, err)
	}

	var cur levelDocument
	err = s.levels.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&cur)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrLevelNotFound
	}
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return explain(cur.level())
}

func (s *MongoStore) setFields(ctx context.Context, tx txn.Tx, id string, set bson.D) error {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return err
	}
	res, err := s.levels.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	if res.MatchedCount == 0 {
		return ErrLevelNotFound
	}
	return nil
}

func (s *MongoStore) count(ctx context.Context, tx txn.Tx, coll *mongo.Collection, filter bson.D) (int, error) {
	ctx, err := lqmongo.TxContext(ctx, tx)
	if err != nil {
		return 0, err
	}
	n, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, errors.Join(ErrStoreFailed, err)
	}
	return int(n), nil
}
