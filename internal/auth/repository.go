package auth

import (
	"context"
	"errors"
	"time"

	"StudentPortal/internal/autherr"
	"StudentPortal/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository is the user side of the credential store. Lookups that match
// nothing return autherr.ErrNotFound; unique-index violations return
// autherr.ErrDuplicateIdentity.
type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindByLogin matches login against username, or against email
	// ignoring case.
	FindByLogin(ctx context.Context, login string) (*User, error)
	// FindConflict returns a user other than excludeID holding username or email.
	FindConflict(ctx context.Context, username, email, excludeID string) (*User, error)
	FindAnyAdmin(ctx context.Context) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, id string, patch UserPatch, at time.Time) error
	SetPassword(ctx context.Context, email, hash string, at time.Time) error
	Delete(ctx context.Context, id string) error
	// DeleteAll empties the store and reports how many records went.
	DeleteAll(ctx context.Context) (int64, error)
	ListByRole(ctx context.Context, role Role, course string) ([]*User, error)
	CountByRole(ctx context.Context, role Role) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{collection: db.Collection(config.UsersCollection)}
}

func roleFilter(role Role) bson.M {
	if role == RoleStudent {
		return bson.M{"$in": bson.A{RoleStudent, legacyStudentRole}}
	}
	return bson.M{"$eq": role}
}

func (r *UserRepository) findOne(ctx context.Context, op string, filter bson.M) (*User, error) {
	var user User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, autherr.ErrNotFound
		}
		return nil, autherr.Upstream(op, err)
	}
	user.Role = NormalizeRole(user.Role)
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, "users.find_by_id", bson.M{"id": id})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, "users.find_by_email", bson.M{"email": email})
}

func (r *UserRepository) FindByLogin(ctx context.Context, login string) (*User, error) {
	return r.findOne(ctx, "users.find_by_login", bson.M{"$or": bson.A{
		bson.M{"username": login},
		bson.M{"email": NormalizeEmail(login)},
	}})
}

func (r *UserRepository) FindConflict(ctx context.Context, username, email, excludeID string) (*User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
	}}
	if excludeID != "" {
		filter["id"] = bson.M{"$ne": excludeID}
	}
	return r.findOne(ctx, "users.find_conflict", filter)
}

func (r *UserRepository) FindAnyAdmin(ctx context.Context) (*User, error) {
	return r.findOne(ctx, "users.find_admin", bson.M{"role": RoleAdmin})
}

func (r *UserRepository) Create(ctx context.Context, user *User) error {
	_, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return autherr.ErrDuplicateIdentity
		}
		return autherr.Upstream("users.insert", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, id string, patch UserPatch, at time.Time) error {
	set := bson.M{"updated_at": at}
	if patch.FullName != nil {
		set["fullname"] = *patch.FullName
	}
	if patch.Username != nil {
		set["username"] = *patch.Username
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.Course != nil {
		set["course"] = *patch.Course
	}
	if patch.Absences != nil {
		set["absences"] = *patch.Absences
	}
	if patch.Password != nil {
		set["password"] = *patch.Password
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return autherr.ErrDuplicateIdentity
		}
		return autherr.Upstream("users.update", err)
	}
	if res.MatchedCount == 0 {
		return autherr.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetPassword(ctx context.Context, email, hash string, at time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"password": hash, "updated_at": at}},
	)
	if err != nil {
		return autherr.Upstream("users.set_password", err)
	}
	if res.MatchedCount == 0 {
		return autherr.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return autherr.Upstream("users.delete", err)
	}
	if res.DeletedCount == 0 {
		return autherr.ErrNotFound
	}
	return nil
}

func (r *UserRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, autherr.Upstream("users.delete_all", err)
	}
	return res.DeletedCount, nil
}

func (r *UserRepository) ListByRole(ctx context.Context, role Role, course string) ([]*User, error) {
	filter := bson.M{"role": roleFilter(role)}
	if course != "" {
		filter["course"] = course
	}
	opts := options.Find().SetSort(bson.D{{Key: "fullname", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, autherr.Upstream("users.list", err)
	}
	users := []*User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, autherr.Upstream("users.list", err)
	}
	for _, u := range users {
		u.Role = NormalizeRole(u.Role)
	}
	return users, nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role Role) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"role": roleFilter(role)})
	if err != nil {
		return 0, autherr.Upstream("users.count", err)
	}
	return n, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, autherr.Upstream("users.count", err)
	}
	return n, nil
}
