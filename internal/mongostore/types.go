package mongostore

import "go.mongodb.org/mongo-driver/bson/primitive"

// contractAddressDoc mirrors the contract_addresses collection schema.
type contractAddressDoc struct {
	Address   string `bson:"address"`
	TokenType string `bson:"token_type"`
}

// tokenOwnershipDoc mirrors the token_ownerships collection schema.
type tokenOwnershipDoc struct {
	ContractAddress string               `bson:"contract_address"`
	Owner           string               `bson:"owner"`
	TokenID         string               `bson:"token_id,omitempty"`
	Quantity        primitive.Decimal128 `bson:"quantity"`
}

// cursorDoc is the singleton persisted-cursor document.
type cursorDoc struct {
	ID        string `bson:"_id"`
	NextBlock uint64 `bson:"next_block"`
}

const cursorDocID = "cursor"
