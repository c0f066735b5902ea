package near

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
)

// Borsh serialization of NEAR transactions, per the protocol's transaction
// schema. Only the two action kinds the bot submits are encoded.

const (
	actionFunctionCall = 2
	actionTransfer     = 3

	keyTypeED25519 = 0
)

type action struct {
	// Exactly one of functionCall/transfer is set.
	functionCall *functionCallAction
	transfer     *transferAction
}

type functionCallAction struct {
	methodName string
	args       []byte
	gas        uint64
	deposit    *big.Int
}

type transferAction struct {
	deposit *big.Int
}

type transaction struct {
	signerID   string
	publicKey  [32]byte
	nonce      uint64
	receiverID string
	blockHash  [32]byte
	actions    []action
}

type borshWriter struct {
	buf bytes.Buffer
	err error
}

func (w *borshWriter) writeU8(v uint8) { w.buf.WriteByte(v) }

func (w *borshWriter) writeU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *borshWriter) writeU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// writeU128 writes a 16-byte little-endian unsigned integer.
func (w *borshWriter) writeU128(v *big.Int) {
	if v == nil {
		v = new(big.Int)
	}
	if v.Sign() < 0 || v.BitLen() > 128 {
		w.err = fmt.Errorf("amount %s out of u128 range", v)
		return
	}
	var b [16]byte
	v.FillBytes(b[:])
	// big.Int fills big-endian; reverse into little-endian.
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	w.buf.Write(b[:])
}

func (w *borshWriter) writeString(s string) {
	w.writeU32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *borshWriter) writeBytes(b []byte) {
	w.writeU32(uint32(len(b)))
	w.buf.Write(b)
}

func (w *borshWriter) writeFixed(b []byte) { w.buf.Write(b) }

func (w *borshWriter) writeAction(a action) {
	switch {
	case a.functionCall != nil:
		w.writeU8(actionFunctionCall)
		w.writeString(a.functionCall.methodName)
		w.writeBytes(a.functionCall.args)
		w.writeU64(a.functionCall.gas)
		w.writeU128(a.functionCall.deposit)
	case a.transfer != nil:
		w.writeU8(actionTransfer)
		w.writeU128(a.transfer.deposit)
	default:
		w.err = fmt.Errorf("empty action")
	}
}

// encodeTransaction serializes the unsigned transaction; its sha256 digest is
// what gets signed.
func encodeTransaction(tx transaction) ([]byte, error) {
	var w borshWriter
	w.writeString(tx.signerID)
	w.writeU8(keyTypeED25519)
	w.writeFixed(tx.publicKey[:])
	w.writeU64(tx.nonce)
	w.writeString(tx.receiverID)
	w.writeFixed(tx.blockHash[:])
	w.writeU32(uint32(len(tx.actions)))
	for _, a := range tx.actions {
		w.writeAction(a)
	}
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

// encodeSignedTransaction appends the signature to the serialized transaction.
func encodeSignedTransaction(txBytes, signature []byte) ([]byte, error) {
	if len(signature) != 64 {
		return nil, fmt.Errorf("invalid signature length %d", len(signature))
	}
	var w borshWriter
	w.writeFixed(txBytes)
	w.writeU8(keyTypeED25519)
	w.writeFixed(signature)
	return w.buf.Bytes(), w.err
}
