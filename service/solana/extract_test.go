package solana

import (
	"encoding/json"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSignature = "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"

var testBlockhash = solana.Hash(solana.NewWallet().PublicKey())

// makeTransactionEnvelope builds an rpc envelope from a Transaction. The
// envelope has unexported fields, so it is produced through JSON.
func makeTransactionEnvelope(tx *solana.Transaction) (*rpc.TransactionResultEnvelope, error) {
	txJSON, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}
	envelopeJSON, err := json.Marshal(struct {
		Transaction json.RawMessage `json:"transaction"`
	}{Transaction: txJSON})
	if err != nil {
		return nil, err
	}
	var result rpc.GetTransactionResult
	if err := json.Unmarshal(envelopeJSON, &result); err != nil {
		return nil, err
	}
	return result.Transaction, nil
}

type txFixture struct {
	keys      []solana.PublicKey
	pre       []uint64
	post      []uint64
	fee       uint64
	blockTime *solana.UnixTimeSeconds
	txErr     interface{}
}

func (f txFixture) result(t *testing.T) *rpc.GetTransactionResult {
	t.Helper()
	tx := &solana.Transaction{
		Signatures: []solana.Signature{solana.MustSignatureFromBase58(testSignature)},
		Message: solana.Message{
			AccountKeys:     f.keys,
			RecentBlockhash: testBlockhash,
		},
	}
	env, err := makeTransactionEnvelope(tx)
	require.NoError(t, err)

	return &rpc.GetTransactionResult{
		Slot:        100,
		BlockTime:   f.blockTime,
		Transaction: env,
		Meta: &rpc.TransactionMeta{
			Err:          f.txErr,
			Fee:          f.fee,
			PreBalances:  f.pre,
			PostBalances: f.post,
		},
	}
}

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	return solana.NewWallet().PublicKey()
}

func blockTime(v int64) *solana.UnixTimeSeconds {
	bt := solana.UnixTimeSeconds(v)
	return &bt
}

func TestExtract_TrackedSender(t *testing.T) {
	x, y, sys := newKey(t), newKey(t), solana.SystemProgramID
	res := txFixture{
		keys:      []solana.PublicKey{x, y, sys},
		pre:       []uint64{10_000_000, 1_000_000, 1},
		post:      []uint64{10_000_000 - 5_005_000, 1_000_000 + 5_000_000, 1},
		fee:       5000,
		blockTime: blockTime(1_700_000_000),
	}.result(t)

	got, err := Extract(x, testSignature, res)
	require.NoError(t, err)

	assert.Equal(t, testSignature, got.Signature)
	assert.Equal(t, x.String(), got.Sender)
	assert.Equal(t, y.String(), got.Receiver)
	assert.Equal(t, uint64(5_000_000), got.Amount)
	assert.Equal(t, uint64(5000), got.Fee)
	require.NotNil(t, got.Timestamp)
	assert.Equal(t, int64(1_700_000_000), *got.Timestamp)
	assert.Equal(t, testBlockhash.String(), got.PrevBlockhash)
}

func TestExtract_TrackedReceiver(t *testing.T) {
	x, y := newKey(t), newKey(t)
	res := txFixture{
		keys: []solana.PublicKey{x, y},
		pre:  []uint64{10_000_000, 0},
		post: []uint64{10_000_000 - 2_005_000, 2_000_000},
		fee:  5000,
	}.result(t)

	got, err := Extract(y, testSignature, res)
	require.NoError(t, err)
	assert.Equal(t, x.String(), got.Sender)
	assert.Equal(t, y.String(), got.Receiver)
	assert.Equal(t, uint64(2_000_000), got.Amount)
	assert.Nil(t, got.Timestamp, "missing block time must stay null")
}

func TestExtract_SenderIsNotFeePayer(t *testing.T) {
	payer, x, y := newKey(t), newKey(t), newKey(t)
	res := txFixture{
		keys: []solana.PublicKey{payer, x, y},
		pre:  []uint64{1_000_000, 3_000_000, 0},
		post: []uint64{995_000, 2_000_000, 1_000_000},
		fee:  5000,
	}.result(t)

	got, err := Extract(x, testSignature, res)
	require.NoError(t, err)
	assert.Equal(t, x.String(), got.Sender)
	assert.Equal(t, y.String(), got.Receiver)
	assert.Equal(t, uint64(1_000_000), got.Amount)
	assert.Equal(t, uint64(5000), got.Fee)
}

func TestExtract_TrackedReceiverPaysFee(t *testing.T) {
	x, y := newKey(t), newKey(t)
	res := txFixture{
		keys: []solana.PublicKey{x, y},
		pre:  []uint64{10_000_000, 10_000_000},
		post: []uint64{10_995_000, 9_000_000},
		fee:  5000,
	}.result(t)

	got, err := Extract(x, testSignature, res)
	require.NoError(t, err)
	assert.Equal(t, y.String(), got.Sender)
	assert.Equal(t, x.String(), got.Receiver)
	assert.Equal(t, uint64(1_000_000), got.Amount, "fee paid by the receiver is not part of the amount")
	assert.Equal(t, uint64(5000), got.Fee)
}

func TestTransferAmount(t *testing.T) {
	assert.Equal(t, uint64(995_000), transferAmount(995_000, 1, 5000))
	assert.Equal(t, uint64(1_000_000), transferAmount(995_000, 0, 5000))
	assert.Zero(t, transferAmount(0, 0, 5000))
	assert.Zero(t, transferAmount(-10, 2, 5000))
}

func TestExtract_Rejections(t *testing.T) {
	x, y, z := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	tests := []struct {
		name    string
		tracked solana.PublicKey
		fixture txFixture
		reason  RejectReason
	}{
		{
			name:    "failed on chain",
			tracked: x,
			fixture: txFixture{
				keys: []solana.PublicKey{x, y}, pre: []uint64{10, 0}, post: []uint64{5, 0}, fee: 5,
				txErr: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
			},
			reason: RejectFailed,
		},
		{
			name:    "fee only",
			tracked: x,
			fixture: txFixture{keys: []solana.PublicKey{x, y}, pre: []uint64{10_000, 50}, post: []uint64{5_000, 50}, fee: 5000},
			reason:  RejectNoReceiver,
		},
		{
			name:    "sender does not cover amount plus fee",
			tracked: x,
			fixture: txFixture{keys: []solana.PublicKey{x, y}, pre: []uint64{5_000_000, 0}, post: []uint64{0, 5_000_000}, fee: 5000},
			reason:  RejectNoSender,
		},
		{
			name:    "tracked account not a party",
			tracked: z,
			fixture: txFixture{keys: []solana.PublicKey{x, y, z}, pre: []uint64{10_000_000, 0, 7}, post: []uint64{4_995_000, 5_000_000, 7}, fee: 5000},
			reason:  RejectUntracked,
		},
		{
			name:    "balance arrays disagree",
			tracked: x,
			fixture: txFixture{keys: []solana.PublicKey{x, y}, pre: []uint64{10, 0}, post: []uint64{5}, fee: 5},
			reason:  RejectBalanceMismatch,
		},
		{
			name:    "negative block time",
			tracked: x,
			fixture: txFixture{
				keys: []solana.PublicKey{x, y}, pre: []uint64{10_000_000, 0}, post: []uint64{4_995_000, 5_000_000}, fee: 5000,
				blockTime: blockTime(-1),
			},
			reason: RejectInvalidBlockTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.tracked, testSignature, tt.fixture.result(t))
			assert.Nil(t, got)
			rej, ok := IsRejection(err)
			require.True(t, ok, "expected rejection, got %v", err)
			assert.Equal(t, tt.reason, rej.Reason)
			assert.Equal(t, testSignature, rej.Signature)
		})
	}
}

func TestExtract_MissingMeta(t *testing.T) {
	res := txFixture{keys: []solana.PublicKey{newKey(t)}}.result(t)
	res.Meta = nil

	_, err := Extract(solana.NewWallet().PublicKey(), testSignature, res)
	rej, ok := IsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectMissingMeta, rej.Reason)
}

func TestExtract_MissingPayloadIsError(t *testing.T) {
	_, err := Extract(solana.NewWallet().PublicKey(), testSignature, &rpc.GetTransactionResult{
		Meta: &rpc.TransactionMeta{},
	})
	require.Error(t, err)
	_, ok := IsRejection(err)
	assert.False(t, ok)
}

func TestAccountKeysIncludesLoadedAddresses(t *testing.T) {
	a, b, w, r := newKey(t), newKey(t), newKey(t), newKey(t)
	tx := &solana.Transaction{Message: solana.Message{AccountKeys: []solana.PublicKey{a, b}}}
	meta := &rpc.TransactionMeta{
		LoadedAddresses: rpc.LoadedAddresses{
			Writable: solana.PublicKeySlice{w},
			ReadOnly: solana.PublicKeySlice{r},
		},
	}

	assert.Equal(t, []solana.PublicKey{a, b, w, r}, accountKeys(tx, meta))
}

func TestPickReceiverPrefersTrackedThenLargest(t *testing.T) {
	deltas := []int64{-9000, 100, 5000, 5000}

	assert.Equal(t, 1, pickReceiver(deltas, 1))
	assert.Equal(t, 2, pickReceiver(deltas, 0), "ties resolve to the lowest index")
	assert.Equal(t, -1, pickReceiver([]int64{-1, 0}, -1))
}
