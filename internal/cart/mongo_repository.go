package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// cartDoc / cartItemDoc are the persisted shapes. Prices are stored as
// strings because BSON has no encoding for decimal.Decimal.
type cartItemDoc struct {
	ProductID int64     `bson:"product_id"`
	Name      string    `bson:"name"`
	Brand     string    `bson:"brand"`
	Image     string    `bson:"image"`
	UnitPrice string    `bson:"unit_price"`
	Quantity  int       `bson:"quantity"`
	AddedAt   time.Time `bson:"added_at"`
}

type addressDoc struct {
	Address    string `bson:"address"`
	City       string `bson:"city"`
	PostalCode string `bson:"postal_code"`
	Country    string `bson:"country"`
}

type cartDoc struct {
	ID              string        `bson:"_id,omitempty"`
	UserID          string        `bson:"user_id"`
	Items           []cartItemDoc `bson:"items"`
	ShippingAddress *addressDoc   `bson:"shipping_address,omitempty"`
	PaymentMethod   string        `bson:"payment_method,omitempty"`
	CreatedAt       time.Time     `bson:"created_at"`
	UpdatedAt       time.Time     `bson:"updated_at"`
}

func toItemDoc(item CartItem) cartItemDoc {
	return cartItemDoc{
		ProductID: item.ProductID,
		Name:      item.Name,
		Brand:     item.Brand,
		Image:     item.Image,
		UnitPrice: item.UnitPrice.String(),
		Quantity:  item.Quantity,
		AddedAt:   item.AddedAt,
	}
}

func toDoc(c *Cart) *cartDoc {
	doc := &cartDoc{
		ID:            c.ID,
		UserID:        c.UserID,
		Items:         make([]cartItemDoc, 0, len(c.Items)),
		PaymentMethod: c.PaymentMethod,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	for _, item := range c.Items {
		doc.Items = append(doc.Items, toItemDoc(item))
	}
	if c.ShippingAddress != nil {
		doc.ShippingAddress = &addressDoc{
			Address:    c.ShippingAddress.Address,
			City:       c.ShippingAddress.City,
			PostalCode: c.ShippingAddress.PostalCode,
			Country:    c.ShippingAddress.Country,
		}
	}
	return doc
}

func fromDoc(doc *cartDoc) (*Cart, error) {
	c := &Cart{
		ID:            doc.ID,
		UserID:        doc.UserID,
		Items:         make([]CartItem, 0, len(doc.Items)),
		PaymentMethod: doc.PaymentMethod,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	for _, item := range doc.Items {
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("parse unit price for product %d: %w", item.ProductID, err)
		}
		c.Items = append(c.Items, CartItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Brand:     item.Brand,
			Image:     item.Image,
			UnitPrice: price,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		})
	}
	if doc.ShippingAddress != nil {
		c.ShippingAddress = &Address{
			Address:    doc.ShippingAddress.Address,
			City:       doc.ShippingAddress.City,
			PostalCode: doc.ShippingAddress.PostalCode,
			Country:    doc.ShippingAddress.Country,
		}
	}
	return c, nil
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

func (m *mongoRepository) GetCart(ctx context.Context, userID string) (*Cart, error) {
	var doc cartDoc

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return fromDoc(&doc)
}

func (m *mongoRepository) UpsertCart(ctx context.Context, cart *Cart) error {
	now := time.Now()

	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	doc := toDoc(cart)
	filter := bson.M{"user_id": cart.UserID}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}

	return nil
}

func (m *mongoRepository) AddItem(ctx context.Context, userID string, item CartItem) error {
	now := time.Now()
	item.AddedAt = now
	doc := toItemDoc(item)

	filter := bson.M{"user_id": userID}

	// First, check if cart exists
	var existing cartDoc
	err := m.collection.FindOne(ctx, filter).Decode(&existing)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Cart doesn't exist, create it with the item
			created := &cartDoc{
				UserID:    userID,
				Items:     []cartItemDoc{doc},
				CreatedAt: now,
				UpdatedAt: now,
			}

			_, err = m.collection.InsertOne(ctx, created)
			if err != nil {
				return fmt.Errorf("failed to create cart with item: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to check existing cart: %w", err)
	}

	// Cart exists, check if item with same product_id exists
	itemExists := false
	for _, existingItem := range existing.Items {
		if existingItem.ProductID == item.ProductID {
			itemExists = true
			break
		}
	}

	if itemExists {
		// Replace the existing item's quantity and snapshot
		update := bson.M{
			"$set": bson.M{
				"items.$[elem].quantity":   doc.Quantity,
				"items.$[elem].unit_price": doc.UnitPrice,
				"items.$[elem].added_at":   now,
				"updated_at":               now,
			},
		}
		arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.product_id": item.ProductID},
			},
		})

		_, err = m.collection.UpdateOne(ctx, filter, update, arrayFilters)
		if err != nil {
			return fmt.Errorf("failed to update existing item: %w", err)
		}
	} else {
		// Add new item
		update := bson.M{
			"$push": bson.M{"items": doc},
			"$set":  bson.M{"updated_at": now},
		}

		_, err = m.collection.UpdateOne(ctx, filter, update)
		if err != nil {
			return fmt.Errorf("failed to add new item: %w", err)
		}
	}

	return nil
}

func (m *mongoRepository) RemoveItem(ctx context.Context, userID string, productID int64) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *mongoRepository) SaveShippingAddress(ctx context.Context, userID string, addr Address) error {
	now := time.Now()
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set": bson.M{
			"shipping_address": &addressDoc{
				Address:    addr.Address,
				City:       addr.City,
				PostalCode: addr.PostalCode,
				Country:    addr.Country,
			},
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"user_id":    userID,
			"items":      []cartItemDoc{},
			"created_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save shipping address: %w", err)
	}
	return nil
}

func (m *mongoRepository) SavePaymentMethod(ctx context.Context, userID string, method string) error {
	now := time.Now()
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set": bson.M{
			"payment_method": method,
			"updated_at":     now,
		},
		"$setOnInsert": bson.M{
			"user_id":    userID,
			"items":      []cartItemDoc{},
			"created_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save payment method: %w", err)
	}
	return nil
}

func (m *mongoRepository) DeleteCart(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
