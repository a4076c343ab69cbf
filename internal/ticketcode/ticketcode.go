// Package ticketcode produces the opaque codes printed on receipts.
package ticketcode

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

type Generator interface {
	Generate() string
}

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// UUIDGenerator encodes a random UUID as 26 lowercase base32 characters.
type UUIDGenerator struct{}

func NewGenerator() UUIDGenerator { return UUIDGenerator{} }

func (UUIDGenerator) Generate() string {
	id := uuid.New()
	return strings.ToLower(encoding.EncodeToString(id[:]))
}
