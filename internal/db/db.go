package db

import (
	"context"
	"errors"
	"time"

	"social-link-bot/internal/config"
	"social-link-bot/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrNotFound is returned when a chat has no linked account for a provider.
var ErrNotFound = errors.New("linked account not found")

type DB struct {
	Client         *mongo.Client
	Database       *mongo.Database
	LinkedAccounts *mongo.Collection
}

func Connect(ctx context.Context, cfg *config.Config) (*DB, error) {
	clientOpts := options.Client().ApplyURI(cfg.MongoDBURI)
	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(cfg.DatabaseName)

	d := &DB{
		Client:         client,
		Database:       db,
		LinkedAccounts: db.Collection("linked_accounts"),
	}

	if err := d.createIndexes(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *DB) createIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := d.LinkedAccounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "chat_id", Value: 1}, {Key: "provider", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "provider", Value: 1}, {Key: "provider_user_id", Value: 1}},
		},
	})
	return err
}

func (d *DB) Close(ctx context.Context) error {
	return d.Client.Disconnect(ctx)
}

// SaveLinkedAccount upserts the link for (chat, provider).
func (d *DB) SaveLinkedAccount(ctx context.Context, account *models.LinkedAccount) error {
	opts := options.UpdateOne().SetUpsert(true)
	filter := bson.M{"chat_id": account.ChatID, "provider": account.Provider}
	update := bson.M{"$set": account}
	_, err := d.LinkedAccounts.UpdateOne(ctx, filter, update, opts)
	return err
}

func (d *DB) GetLinkedAccount(ctx context.Context, chatID int64, provider string) (*models.LinkedAccount, error) {
	var account models.LinkedAccount
	err := d.LinkedAccounts.FindOne(ctx, bson.M{"chat_id": chatID, "provider": provider}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// DeleteLinkedAccount removes the link and reports ErrNotFound when there was none.
func (d *DB) DeleteLinkedAccount(ctx context.Context, chatID int64, provider string) error {
	res, err := d.LinkedAccounts.DeleteOne(ctx, bson.M{"chat_id": chatID, "provider": provider})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
