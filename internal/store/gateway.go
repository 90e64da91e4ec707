package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_support_bot/internal/domain"
)

const (
	groupSettingsKey = "group"
	complaintSeqKey  = "complaints"
)

type collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
}

type pinger interface {
	Ping(ctx context.Context) error
}

// collections groups the handles a Gateway works with.
type collections struct {
	users         collection
	complaints    collection
	bannedWords   collection
	autoResponses collection
	warnings      collection
	settings      collection
	counters      collection
}

// Gateway implements domain.Gateway on top of MongoDB collections.
type Gateway struct {
	cols   collections
	pinger pinger
	now    func() time.Time
}

var _ domain.Gateway = (*Gateway)(nil)

// NewGateway builds a Gateway over the manager's database.
func NewGateway(m *Manager) *Gateway {
	return newGateway(collections{
		users:         m.Collection(CollectionUsers),
		complaints:    m.Collection(CollectionComplaints),
		bannedWords:   m.Collection(CollectionBannedWords),
		autoResponses: m.Collection(CollectionAutoResponses),
		warnings:      m.Collection(CollectionWarnings),
		settings:      m.Collection(CollectionGroupSettings),
		counters:      m.Collection(CollectionCounters),
	}, m)
}

func newGateway(cols collections, p pinger) *Gateway {
	return &Gateway{
		cols:   cols,
		pinger: p,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
}

// Ping checks store connectivity.
func (g *Gateway) Ping(ctx context.Context) error {
	if g == nil || g.pinger == nil {
		return errors.New("gateway is not initialized")
	}

	return g.pinger.Ping(ctx)
}

// UpsertUser creates the user on first sight and refreshes the profile fields
// on every later call. It reports whether a new record was created.
func (g *Gateway) UpsertUser(ctx context.Context, user domain.User) (bool, error) {
	if user.UserID == 0 {
		return false, errors.New("user_id is required")
	}

	now := g.now()
	update := bson.M{
		"$set": bson.M{
			"username":   user.Username,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"user_id":    user.UserID,
			"created_at": now,
		},
	}

	result, err := g.cols.users.UpdateOne(ctx,
		bson.M{"user_id": user.UserID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("upsert user: %w", err)
	}

	return result != nil && result.UpsertedCount > 0, nil
}

// GetUser fetches a user by Telegram user_id.
func (g *Gateway) GetUser(ctx context.Context, userID int64) (domain.User, error) {
	var user domain.User
	if err := findOne(ctx, g.cols.users, bson.M{"user_id": userID}, &user); err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}

	return user, nil
}

// CountUsers returns the number of registered users.
func (g *Gateway) CountUsers(ctx context.Context) (int64, error) {
	count, err := g.cols.users.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return count, nil
}

// AddComplaint stores a complaint under the next sequence id and returns it.
func (g *Gateway) AddComplaint(ctx context.Context, complaint domain.Complaint) (int64, error) {
	id, err := g.nextSequence(ctx, complaintSeqKey)
	if err != nil {
		return 0, err
	}

	complaint.ID = id
	if complaint.Status == "" {
		complaint.Status = domain.ComplaintPending
	}
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = g.now()
	}

	if _, err := g.cols.complaints.InsertOne(ctx, complaint); err != nil {
		return 0, fmt.Errorf("insert complaint: %w", err)
	}

	return id, nil
}

// GetComplaint fetches a complaint by id.
func (g *Gateway) GetComplaint(ctx context.Context, id int64) (domain.Complaint, error) {
	var complaint domain.Complaint
	if err := findOne(ctx, g.cols.complaints, bson.M{"id": id}, &complaint); err != nil {
		return domain.Complaint{}, fmt.Errorf("find complaint: %w", err)
	}

	return complaint, nil
}

// UpdateComplaintStatus sets the status of a complaint.
func (g *Gateway) UpdateComplaintStatus(ctx context.Context, id int64, status domain.ComplaintStatus) error {
	result, err := g.cols.complaints.UpdateOne(ctx,
		bson.M{"id": id},
		bson.M{"$set": bson.M{"status": status}},
	)
	if err != nil {
		return fmt.Errorf("update complaint status: %w", err)
	}
	if result != nil && result.MatchedCount == 0 {
		return fmt.Errorf("update complaint status: %w", domain.ErrNotFound)
	}

	return nil
}

// ListComplaints returns complaints newest first.
func (g *Gateway) ListComplaints(ctx context.Context, filter domain.ComplaintFilter) ([]domain.Complaint, error) {
	query := bson.M{}
	if filter.UserID != 0 {
		query["user_id"] = filter.UserID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	opts := options.Find().SetSort(bson.D{{Key: "id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	var complaints []domain.Complaint
	if err := findAll(ctx, g.cols.complaints, query, opts, &complaints); err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}

	return complaints, nil
}

// CountComplaints counts complaints with the given status, or all when empty.
func (g *Gateway) CountComplaints(ctx context.Context, status domain.ComplaintStatus) (int64, error) {
	query := bson.M{}
	if status != "" {
		query["status"] = status
	}

	count, err := g.cols.complaints.CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("count complaints: %w", err)
	}

	return count, nil
}

// AddBannedWord stores a banned word; adding an existing word is a no-op.
func (g *Gateway) AddBannedWord(ctx context.Context, word string) error {
	word = domain.NormalizeTerm(word)
	if word == "" {
		return errors.New("word is required")
	}

	_, err := g.cols.bannedWords.UpdateOne(ctx,
		bson.M{"word": word},
		bson.M{"$setOnInsert": bson.M{"word": word, "created_at": g.now()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("add banned word: %w", err)
	}

	return nil
}

// RemoveBannedWord deletes a banned word and reports whether it existed.
func (g *Gateway) RemoveBannedWord(ctx context.Context, word string) (bool, error) {
	result, err := g.cols.bannedWords.DeleteOne(ctx, bson.M{"word": domain.NormalizeTerm(word)})
	if err != nil {
		return false, fmt.Errorf("remove banned word: %w", err)
	}

	return result != nil && result.DeletedCount > 0, nil
}

// ListBannedWords returns banned words in insertion order.
func (g *Gateway) ListBannedWords(ctx context.Context) ([]domain.BannedWord, error) {
	var words []domain.BannedWord
	if err := findAll(ctx, g.cols.bannedWords, bson.D{}, insertionOrder(), &words); err != nil {
		return nil, fmt.Errorf("list banned words: %w", err)
	}

	return words, nil
}

// AddAutoResponse creates or replaces the response of a trigger.
func (g *Gateway) AddAutoResponse(ctx context.Context, trigger, response string) error {
	trigger = domain.NormalizeTerm(trigger)
	if trigger == "" {
		return errors.New("trigger is required")
	}

	_, err := g.cols.autoResponses.UpdateOne(ctx,
		bson.M{"trigger": trigger},
		bson.M{
			"$set":         bson.M{"response": response},
			"$setOnInsert": bson.M{"trigger": trigger, "created_at": g.now()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("add auto response: %w", err)
	}

	return nil
}

// RemoveAutoResponse deletes a trigger and reports whether it existed.
func (g *Gateway) RemoveAutoResponse(ctx context.Context, trigger string) (bool, error) {
	result, err := g.cols.autoResponses.DeleteOne(ctx, bson.M{"trigger": domain.NormalizeTerm(trigger)})
	if err != nil {
		return false, fmt.Errorf("remove auto response: %w", err)
	}

	return result != nil && result.DeletedCount > 0, nil
}

// ListAutoResponses returns triggers in insertion order, which is the order
// the matcher evaluates them in.
func (g *Gateway) ListAutoResponses(ctx context.Context) ([]domain.AutoResponse, error) {
	var responses []domain.AutoResponse
	if err := findAll(ctx, g.cols.autoResponses, bson.D{}, insertionOrder(), &responses); err != nil {
		return nil, fmt.Errorf("list auto responses: %w", err)
	}

	return responses, nil
}

// AddWarning appends a warning to the user's strike log.
func (g *Gateway) AddWarning(ctx context.Context, warning domain.Warning) error {
	if warning.UserID == 0 {
		return errors.New("user_id is required")
	}
	if warning.CreatedAt.IsZero() {
		warning.CreatedAt = g.now()
	}

	if _, err := g.cols.warnings.InsertOne(ctx, warning); err != nil {
		return fmt.Errorf("insert warning: %w", err)
	}

	return nil
}

// ListWarnings returns the user's warnings oldest first.
func (g *Gateway) ListWarnings(ctx context.Context, userID int64) ([]domain.Warning, error) {
	var warnings []domain.Warning
	if err := findAll(ctx, g.cols.warnings, bson.M{"user_id": userID}, insertionOrder(), &warnings); err != nil {
		return nil, fmt.Errorf("list warnings: %w", err)
	}

	return warnings, nil
}

// ClearWarnings removes every warning of the user.
func (g *Gateway) ClearWarnings(ctx context.Context, userID int64) error {
	if _, err := g.cols.warnings.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("clear warnings: %w", err)
	}

	return nil
}

// GetGroupSettings loads the singleton settings document.
func (g *Gateway) GetGroupSettings(ctx context.Context) (domain.GroupSettings, error) {
	var settings domain.GroupSettings
	if err := findOne(ctx, g.cols.settings, bson.M{"_id": groupSettingsKey}, &settings); err != nil {
		return domain.GroupSettings{}, fmt.Errorf("find group settings: %w", err)
	}

	return settings, nil
}

// UpdateGroupSettings writes the singleton settings document.
func (g *Gateway) UpdateGroupSettings(ctx context.Context, settings domain.GroupSettings) error {
	_, err := g.cols.settings.UpdateOne(ctx,
		bson.M{"_id": groupSettingsKey},
		bson.M{"$set": bson.M{
			"is_closed":             settings.IsClosed,
			"max_warnings":          settings.MaxWarnings,
			"mute_duration_minutes": settings.MuteDurationMinutes,
			"updated_at":            g.now(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("update group settings: %w", err)
	}

	return nil
}

func (g *Gateway) nextSequence(ctx context.Context, name string) (int64, error) {
	result := g.cols.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	if result == nil {
		return 0, errors.New("next sequence returned no result")
	}

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	if err := result.Decode(&counter); err != nil {
		return 0, fmt.Errorf("next %s sequence: %w", name, err)
	}

	return counter.Seq, nil
}

func insertionOrder() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
}

func findOne(ctx context.Context, coll collection, filter interface{}, out interface{}) error {
	result := coll.FindOne(ctx, filter)
	if result == nil {
		return errors.New("find returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ErrNotFound
		}
		return err
	}

	return result.Decode(out)
}

func findAll(ctx context.Context, coll collection, filter interface{}, opts *options.FindOptions, out interface{}) error {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return err
	}

	return cursor.All(ctx, out)
}
