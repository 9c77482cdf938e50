package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACVerifier(t *testing.T) {
	v, err := NewHMACVerifier("gw-secret")
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("gw-secret"))
	mac.Write([]byte("FEE-20260301-ABCDEF0123|TXN-1"))
	expected := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, expected, v.Sign("FEE-20260301-ABCDEF0123", "TXN-1"))

	tests := []struct {
		name      string
		orderRef  string
		txnRef    string
		signature string
		want      bool
	}{
		{"valid", "FEE-20260301-ABCDEF0123", "TXN-1", expected, true},
		{"uppercase hex", "FEE-20260301-ABCDEF0123", "TXN-1", strings.ToUpper(expected), true},
		{"different transaction", "FEE-20260301-ABCDEF0123", "TXN-2", expected, false},
		{"different order", "FEE-20260301-0000000000", "TXN-1", expected, false},
		{"not hex", "FEE-20260301-ABCDEF0123", "TXN-1", "zz", false},
		{"truncated", "FEE-20260301-ABCDEF0123", "TXN-1", expected[:32], false},
		{"empty", "FEE-20260301-ABCDEF0123", "TXN-1", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Verify(tt.orderRef, tt.txnRef, tt.signature))
		})
	}
}

func TestNewHMACVerifier_RequiresSecret(t *testing.T) {
	_, err := NewHMACVerifier("")
	assert.Error(t, err)
}

type fakeSnap struct {
	req  *snap.Request
	resp *snap.Response
	err  *midtrans.Error
}

func (f *fakeSnap) CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error) {
	f.req = req
	return f.resp, f.err
}

func testOrder(t *testing.T, amount int64) (*fee.PaymentOrder, academic.Student) {
	t.Helper()
	scope := academic.Scope{TenantID: uuid.New(), SessionID: uuid.New()}
	student := academic.Student{ID: uuid.New(), Name: "Ayu Lestari", Class: "5", ContactEmail: "guardian@example.com"}
	order, err := fee.NewPaymentOrder(scope, fee.PaymentTarget{Kind: fee.OrderKindDue, StudentID: student.ID, Period: "March 2026"}, decimal.NewFromInt(amount))
	require.NoError(t, err)
	return order, student
}

func TestMidtransIssuer_Issue(t *testing.T) {
	order, student := testOrder(t, 1300)
	client := &fakeSnap{resp: &snap.Response{Token: "tok", RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/tok"}}
	issuer := newMidtransIssuer(client, "https://school.example/paid", nil)

	url, err := issuer.Issue(context.Background(), order, student, []fee.ReceiptLine{
		{Description: "Tuition", Amount: decimal.NewFromInt(1000)},
		{Description: "Transport", Amount: decimal.NewFromInt(300)},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://app.sandbox.midtrans.com/snap/v2/vtweb/tok", url)

	require.NotNil(t, client.req)
	assert.Equal(t, order.OrderRef, client.req.TransactionDetails.OrderID)
	assert.Equal(t, int64(1300), client.req.TransactionDetails.GrossAmt)
	require.NotNil(t, client.req.Items)
	assert.Len(t, *client.req.Items, 2)
	assert.Equal(t, "guardian@example.com", client.req.CustomerDetail.Email)
	require.NotNil(t, client.req.Callbacks)
	assert.Equal(t, "https://school.example/paid", client.req.Callbacks.Finish)
}

func TestMidtransIssuer_ItemsOmittedWhenTheyDoNotAddUp(t *testing.T) {
	order, student := testOrder(t, 1000)
	client := &fakeSnap{resp: &snap.Response{RedirectURL: "https://x"}}
	issuer := newMidtransIssuer(client, "", nil)

	_, err := issuer.Issue(context.Background(), order, student, []fee.ReceiptLine{
		{Description: "Tuition", Amount: decimal.NewFromInt(900)},
	})
	require.NoError(t, err)
	assert.Nil(t, client.req.Items)
	assert.Nil(t, client.req.Callbacks)
}

func TestMidtransIssuer_Errors(t *testing.T) {
	order, student := testOrder(t, 1000)

	t.Run("gateway error", func(t *testing.T) {
		client := &fakeSnap{err: &midtrans.Error{Message: "unauthorized", StatusCode: 401}}
		_, err := newMidtransIssuer(client, "", nil).Issue(context.Background(), order, student, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), order.OrderRef)
	})

	t.Run("empty redirect", func(t *testing.T) {
		client := &fakeSnap{resp: &snap.Response{Token: "tok"}}
		_, err := newMidtransIssuer(client, "", nil).Issue(context.Background(), order, student, nil)
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		client := &fakeSnap{}
		_, err := newMidtransIssuer(client, "", nil).Issue(ctx, order, student, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, client.req)
	})
}

func TestNewMidtransIssuer_RequiresKey(t *testing.T) {
	_, err := NewMidtransIssuer(MidtransConfig{}, nil)
	assert.Error(t, err)

	issuer, err := NewMidtransIssuer(MidtransConfig{ServerKey: "SB-Mid-server-x", Environment: "sandbox"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, issuer)
}

func TestNoopIssuer(t *testing.T) {
	order, student := testOrder(t, 1000)
	url, err := NoopIssuer{}.Issue(context.Background(), order, student, nil)
	require.NoError(t, err)
	assert.Empty(t, url)
}
