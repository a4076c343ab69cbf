package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// productDocument keeps prices as Decimal128 so they survive the round
// trip without float rounding.
type productDocument struct {
	ID    string               `bson:"_id"`
	Title string               `bson:"title"`
	Owner string               `bson:"owner"`
	Price primitive.Decimal128 `bson:"price"`
	Stock int                  `bson:"stock"`
}

func (d productDocument) toDomain() (*domain.Product, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return nil, fmt.Errorf("invalid price for product %s: %w", d.ID, err)
	}
	return &domain.Product{ID: d.ID, Title: d.Title, Owner: d.Owner, Price: price, Stock: d.Stock}, nil
}

func newProductDocument(p *domain.Product) (productDocument, error) {
	price, err := primitive.ParseDecimal128(p.Price.String())
	if err != nil {
		return productDocument{}, fmt.Errorf("invalid price for product %s: %w", p.ID, err)
	}
	return productDocument{ID: p.ID, Title: p.Title, Owner: p.Owner, Price: price, Stock: p.Stock}, nil
}

type MongoProductRepository struct {
	collection *mongo.Collection
}

func NewMongoProductRepository(db *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{
		collection: db.Collection("products"),
	}
}

func (m *MongoProductRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var doc productDocument

	err := m.collection.FindOne(ctx, bson.M{"_id": productID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: id=%s", domain.ErrProductNotFound, productID)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return doc.toDomain()
}

func (m *MongoProductRepository) UpdateStock(ctx context.Context, productID string, expected, newStock int) error {
	if newStock < 0 {
		return fmt.Errorf("%w: stock for %s cannot go below zero", domain.ErrValidation, productID)
	}

	filter := bson.M{"_id": productID, "stock": expected}
	update := bson.M{"$set": bson.M{"stock": newStock}}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	// Nothing matched: either the product is gone or its stock moved.
	n, err := m.collection.CountDocuments(ctx, bson.M{"_id": productID})
	if err != nil {
		return fmt.Errorf("failed to check product: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id=%s", domain.ErrProductNotFound, productID)
	}
	return fmt.Errorf("%w: id=%s expected=%d", domain.ErrStockConflict, productID, expected)
}

// UpsertProduct writes a catalog entry. The catalog is owned elsewhere;
// this is used for seeding and tests.
func (m *MongoProductRepository) UpsertProduct(ctx context.Context, p *domain.Product) error {
	doc, err := newProductDocument(p)
	if err != nil {
		return err
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, opts); err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (m *MongoProductRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}}},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
