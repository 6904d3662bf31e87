// Package mongostore implements the document-store adapters: the
// classification cache (contract_addresses), the materialised ownership
// view (token_ownerships), and the optional persisted block cursor
// (processor_state).
package mongostore

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/0xmhha/ownershipworker/internal/classify"
)

const (
	collContractAddresses = "contract_addresses"
	collTokenOwnerships   = "token_ownerships"
	collProcessorState    = "processor_state"
)

// Store is the Mongo-backed implementation of classify.Cache,
// ownership.OwnershipStore and ownership.CursorStore.
type Store struct {
	client      *mongo.Client
	db          *mongo.Database
	classes     *mongo.Collection
	ownerships  *mongo.Collection
	cursorState *mongo.Collection
	logger      *zap.Logger
}

// Connect dials the given Mongo URI and selects database.
func Connect(ctx context.Context, uri, database string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:      client,
		db:          db,
		classes:     db.Collection(collContractAddresses),
		ownerships:  db.Collection(collTokenOwnerships),
		cursorState: db.Collection(collProcessorState),
		logger:      logger,
	}
	return s, nil
}

// Ping verifies the store is reachable, used as the startup health probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func normalizeAddress(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// --- classify.Cache ---

func (s *Store) Get(ctx context.Context, address common.Address) (classify.Standard, bool, error) {
	var doc contractAddressDoc
	err := s.classes.FindOne(ctx, bson.M{"address": normalizeAddress(address)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup classification: %w", err)
	}
	return classify.Standard(strings.ToLower(doc.TokenType)), true, nil
}

func (s *Store) Upsert(ctx context.Context, c classify.Classification) error {
	filter := bson.M{"address": normalizeAddress(c.Address)}
	update := bson.M{"$set": bson.M{
		"address":    normalizeAddress(c.Address),
		"token_type": strings.ToUpper(string(c.Standard)),
	}}
	_, err := s.classes.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert classification: %w", err)
	}
	return nil
}

// --- ownership.OwnershipStore ---

func decimalToMongo(d decimal.Decimal) (primitive.Decimal128, error) {
	dec, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert decimal %s: %w", d.String(), err)
	}
	return dec, nil
}

func (s *Store) IncBalance(ctx context.Context, contract, owner common.Address, tokenID string, delta decimal.Decimal) error {
	incVal, err := decimalToMongo(delta)
	if err != nil {
		return err
	}

	filter := bson.M{
		"contract_address": normalizeAddress(contract),
		"owner":             normalizeAddress(owner),
		"token_id":          tokenID,
	}
	update := bson.M{"$inc": bson.M{"quantity": incVal}}
	_, err = s.ownerships.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("inc balance: %w", err)
	}
	return nil
}

func (s *Store) UpsertERC721Owner(ctx context.Context, contract common.Address, tokenID string, owner common.Address) error {
	one, err := decimalToMongo(decimal.NewFromInt(1))
	if err != nil {
		return err
	}
	filter := bson.M{
		"contract_address": normalizeAddress(contract),
		"token_id":          tokenID,
	}
	update := bson.M{"$set": bson.M{
		"contract_address": normalizeAddress(contract),
		"token_id":          tokenID,
		"owner":             normalizeAddress(owner),
		"quantity":          one,
	}}
	_, err = s.ownerships.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert erc721 owner: %w", err)
	}
	return nil
}

func (s *Store) DeleteMany(ctx context.Context, contract common.Address, owner *common.Address, tokenID string) error {
	filter := bson.M{
		"contract_address": normalizeAddress(contract),
		"token_id":          tokenID,
	}
	if owner != nil {
		filter["owner"] = normalizeAddress(*owner)
	}
	_, err := s.ownerships.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete ownership rows: %w", err)
	}
	return nil
}

// --- ownership.CursorStore ---

func (s *Store) GetCursor(ctx context.Context) (uint64, bool, error) {
	var doc cursorDoc
	err := s.cursorState.FindOne(ctx, bson.M{"_id": cursorDocID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load cursor: %w", err)
	}
	return doc.NextBlock, true, nil
}

func (s *Store) SaveCursor(ctx context.Context, nextBlock uint64) error {
	filter := bson.M{"_id": cursorDocID}
	update := bson.M{"$set": bson.M{"next_block": nextBlock}}
	_, err := s.cursorState.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
