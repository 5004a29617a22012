package proctor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository persists students and activity events in MongoDB.
type MongoRepository struct {
	client   *mongo.Client
	students *mongo.Collection
	events   *mongo.Collection
}

// NewMongoRepository binds to the students and activityevents collections of db.
func NewMongoRepository(client *mongo.Client, db string) *MongoRepository {
	database := client.Database(db)
	return &MongoRepository{
		client:   client,
		students: database.Collection("students"),
		events:   database.Collection("activityevents"),
	}
}

// EnsureIndexes creates the unique studentId index and the lookup indexes.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.students.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "studentId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return err
	}
	_, err = r.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "studentId", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	return err
}

// Ping checks connectivity.
func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (r *MongoRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

// CreateStudent inserts a new student document.
func (r *MongoRepository) CreateStudent(ctx context.Context, s Student) (Student, error) {
	if s.StudentID == "" {
		s.StudentID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	if _, err := r.students.InsertOne(ctx, s); err != nil {
		return Student{}, err
	}
	return s, nil
}

// ListStudents returns all students, newest first.
func (r *MongoRepository) ListStudents(ctx context.Context) ([]Student, error) {
	cur, err := r.students.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var res []Student
	if err := cur.All(ctx, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// GetStudent returns a single student by id.
func (r *MongoRepository) GetStudent(ctx context.Context, studentID string) (Student, error) {
	var s Student
	if err := r.students.FindOne(ctx, bson.M{"studentId": studentID}).Decode(&s); err != nil {
		return Student{}, notFound(err)
	}
	return s, nil
}

// FindStudentByName returns the newest student with the given name.
func (r *MongoRepository) FindStudentByName(ctx context.Context, name string) (Student, error) {
	var s Student
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if err := r.students.FindOne(ctx, bson.M{"name": name}, opts).Decode(&s); err != nil {
		return Student{}, notFound(err)
	}
	return s, nil
}

// UpdateStudent applies the non-nil fields of upd and returns the new document.
func (r *MongoRepository) UpdateStudent(ctx context.Context, studentID string, upd StudentUpdate) (Student, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}
	if upd.RiskScore != nil {
		set["riskScore"] = *upd.RiskScore
	}
	if upd.TimeElapsed != nil {
		set["timeElapsed"] = *upd.TimeElapsed
	}
	var s Student
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.students.FindOneAndUpdate(ctx, bson.M{"studentId": studentID}, bson.M{"$set": set}, opts).Decode(&s)
	if err != nil {
		return Student{}, notFound(err)
	}
	return s, nil
}

// DeleteStudent removes one student.
func (r *MongoRepository) DeleteStudent(ctx context.Context, studentID string) error {
	res, err := r.students.DeleteOne(ctx, bson.M{"studentId": studentID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllStudents empties the students collection.
func (r *MongoRepository) DeleteAllStudents(ctx context.Context) (int64, error) {
	res, err := r.students.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// InsertEvent appends an activity event.
func (r *MongoRepository) InsertEvent(ctx context.Context, evt ActivityEvent) (ActivityEvent, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = now
	}
	evt.CreatedAt = now
	if _, err := r.events.InsertOne(ctx, evt); err != nil {
		return ActivityEvent{}, err
	}
	return evt, nil
}

// ListEvents returns events newest first, optionally for one student.
func (r *MongoRepository) ListEvents(ctx context.Context, studentID string) ([]ActivityEvent, error) {
	filter := bson.M{}
	if studentID != "" {
		filter["studentId"] = studentID
	}
	cur, err := r.events.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var res []ActivityEvent
	if err := cur.All(ctx, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteAllEvents empties the activity collection.
func (r *MongoRepository) DeleteAllEvents(ctx context.Context) (int64, error) {
	res, err := r.events.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
