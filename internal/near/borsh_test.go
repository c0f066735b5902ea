package near

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"testing"
)

func TestEncodeTransferTransaction(t *testing.T) {
	var tx transaction
	tx.signerID = "a.test"
	tx.receiverID = "b.test"
	tx.nonce = 7
	for i := range tx.publicKey {
		tx.publicKey[i] = 0x01
	}
	for i := range tx.blockHash {
		tx.blockHash[i] = 0x02
	}
	tx.actions = []action{{transfer: &transferAction{deposit: big.NewInt(5)}}}

	got, err := encodeTransaction(tx)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var want bytes.Buffer
	u32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		want.Write(b[:])
	}
	u64 := func(v uint64) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		want.Write(b[:])
	}
	u32(6)
	want.WriteString("a.test")
	want.WriteByte(0) // ed25519 key type
	want.Write(bytes.Repeat([]byte{0x01}, 32))
	u64(7)
	u32(6)
	want.WriteString("b.test")
	want.Write(bytes.Repeat([]byte{0x02}, 32))
	u32(1)             // one action
	want.WriteByte(3)  // transfer variant
	want.WriteByte(5)  // deposit low byte
	want.Write(bytes.Repeat([]byte{0}, 15))

	if !bytes.Equal(got, want.Bytes()) {
		t.Errorf("encoding mismatch:\n got %x\nwant %x", got, want.Bytes())
	}
}

func TestEncodeFunctionCallAction(t *testing.T) {
	var w borshWriter
	w.writeAction(action{functionCall: &functionCallAction{
		methodName: "get_wallet",
		args:       []byte(`{}`),
		gas:        callGas,
		deposit:    big.NewInt(0),
	}})
	if w.err != nil {
		t.Fatalf("write action: %v", w.err)
	}
	got := w.buf.Bytes()

	if got[0] != actionFunctionCall {
		t.Errorf("variant = %d", got[0])
	}
	if binary.LittleEndian.Uint32(got[1:5]) != uint32(len("get_wallet")) {
		t.Errorf("method length prefix wrong")
	}
	gasOff := 1 + 4 + len("get_wallet") + 4 + 2
	if gas := binary.LittleEndian.Uint64(got[gasOff : gasOff+8]); gas != callGas {
		t.Errorf("gas = %d, want %d", gas, uint64(callGas))
	}
	if len(got) != gasOff+8+16 {
		t.Errorf("total length = %d, want %d", len(got), gasOff+8+16)
	}
}

func TestWriteU128RejectsOutOfRange(t *testing.T) {
	var w borshWriter
	over := new(big.Int).Lsh(big.NewInt(1), 128)
	w.writeU128(over)
	if w.err == nil {
		t.Fatalf("expected error for 2^128")
	}

	var neg borshWriter
	neg.writeU128(big.NewInt(-1))
	if neg.err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestEncodeSignedTransactionLength(t *testing.T) {
	txBytes := []byte{0xAA, 0xBB}
	sig := bytes.Repeat([]byte{0x0F}, 64)
	got, err := encodeSignedTransaction(txBytes, sig)
	if err != nil {
		t.Fatalf("encode signed: %v", err)
	}
	if len(got) != len(txBytes)+1+64 {
		t.Errorf("length = %d", len(got))
	}
	if got[len(txBytes)] != keyTypeED25519 {
		t.Errorf("signature key type byte = %d", got[len(txBytes)])
	}

	if _, err := encodeSignedTransaction(txBytes, sig[:10]); err == nil {
		t.Errorf("expected error for short signature")
	}
}
