package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/ddk-chain/ddk-node/internal/types"
)

func TestVerifySignatureRequiresSignatureAndGeneratorKey(t *testing.T) {
	bl := NewBlockLogic(NewLogic(nil))

	assert.False(t, bl.VerifySignature(&types.Block{}))
	assert.False(t, bl.VerifySignature(&types.Block{Signature: []byte("sig")}))
	assert.True(t, bl.VerifySignature(&types.Block{Signature: []byte("sig"), GeneratorPublicKey: []byte("gen")}))
}

func TestVerifySignatureWithGenuineEd25519Key(t *testing.T) {
	bl := NewBlockLogic(NewLogic(nil))
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	blk := &types.Block{Height: 1, PreviousBlock: "prev", Timestamp: 100, GeneratorPublicKey: pub}
	blk.Signature = ed25519.Sign(priv, bl.signingBytes(blk))

	assert.True(t, bl.VerifySignature(blk))

	blk.Height = 2 // tamper after signing
	assert.False(t, bl.VerifySignature(blk))
}

func TestGetIDStable(t *testing.T) {
	bl := NewBlockLogic(NewLogic(nil))
	blk := &types.Block{
		Height:             5,
		PreviousBlock:      "prev",
		Timestamp:          100,
		GeneratorPublicKey: []byte("gen"),
		PayloadHash:        "hash",
	}

	assert.Equal(t, bl.GetID(blk), bl.GetID(blk))
}

func TestObjectNormalizeFillsTransactionCount(t *testing.T) {
	bl := NewBlockLogic(NewLogic(nil))
	blk := &types.Block{Transactions: []*types.Transaction{{}, {}}}

	normalized := bl.ObjectNormalize(blk)
	assert.Equal(t, 2, normalized.NumberOfTransactions)
}
