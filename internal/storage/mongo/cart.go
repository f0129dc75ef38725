// Package mongo stores carts as MongoDB documents keyed by user.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/storefront/internal/domain/cart"
)

// CartsCollection is the collection carts are stored in.
const CartsCollection = "carts"

// Connect opens a client, verifies it with a ping and returns the database.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(5)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}
	return client.Database(database), nil
}

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store on a MongoDB collection with one document
// per user.
type CartStore struct {
	collection *mongo.Collection
}

// NewCartStore returns a CartStore over db's carts collection.
func NewCartStore(db *mongo.Database) *CartStore {
	return &CartStore{collection: db.Collection(CartsCollection)}
}

// CreateIndexes enforces at most one cart per user.
func (s *CartStore) CreateIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("user_id_unique"),
	})
	if err != nil {
		return fmt.Errorf("creating cart indexes: %w", err)
	}
	return nil
}

func (s *CartStore) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	var c cart.Cart
	err := s.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart: %w", err)
	}
	return &c, nil
}

// Save replaces the user's cart document, creating it if needed.
func (s *CartStore) Save(ctx context.Context, c *cart.Cart) error {
	if c.Items == nil {
		c.Items = []cart.Item{}
	}
	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"user_id": c.UserID},
		c,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("saving cart: %w", err)
	}
	return nil
}

func (s *CartStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("deleting cart: %w", err)
	}
	return nil
}

// Ping checks the server behind the store.
func (s *CartStore) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, nil)
}
