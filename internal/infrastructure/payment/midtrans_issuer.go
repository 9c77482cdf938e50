package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"go.uber.org/zap"
)

// snapTransactor is the part of snap.Client the issuer uses
type snapTransactor interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// MidtransConfig configures the Snap checkout
type MidtransConfig struct {
	ServerKey   string
	Environment string // "sandbox" or "production"
	FinishURL   string
}

// MidtransIssuer registers payment orders as Midtrans Snap transactions.
// The order reference is the Snap order_id, so the webhook can be matched
// back to the order.
type MidtransIssuer struct {
	client    snapTransactor
	finishURL string
	logger    *zap.Logger
}

// NewMidtransIssuer creates an issuer backed by a Snap client
func NewMidtransIssuer(cfg MidtransConfig, logger *zap.Logger) (*MidtransIssuer, error) {
	if strings.TrimSpace(cfg.ServerKey) == "" {
		return nil, fmt.Errorf("payment: midtrans server key is required")
	}
	env := midtrans.Sandbox
	if strings.EqualFold(cfg.Environment, "production") {
		env = midtrans.Production
	}
	var client snap.Client
	client.New(cfg.ServerKey, env)
	return newMidtransIssuer(&client, cfg.FinishURL, logger), nil
}

func newMidtransIssuer(client snapTransactor, finishURL string, logger *zap.Logger) *MidtransIssuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MidtransIssuer{client: client, finishURL: finishURL, logger: logger}
}

// Issue creates the Snap transaction and returns its redirect URL
func (i *MidtransIssuer) Issue(ctx context.Context, order *fee.PaymentOrder, student academic.Student, lines []fee.ReceiptLine) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	req := buildSnapRequest(order, student, lines)
	if i.finishURL != "" {
		req.Callbacks = &snap.Callbacks{Finish: i.finishURL}
	}

	resp, merr := i.client.CreateTransaction(req)
	if merr != nil {
		return "", fmt.Errorf("midtrans create transaction %s: %w", order.OrderRef, merr)
	}
	if resp == nil || resp.RedirectURL == "" {
		return "", fmt.Errorf("midtrans create transaction %s: empty redirect url", order.OrderRef)
	}
	i.logger.Debug("snap transaction created",
		zap.String("order_ref", order.OrderRef),
		zap.String("token", resp.Token))
	return resp.RedirectURL, nil
}

// buildSnapRequest prices the order in whole currency units. Item details
// are only sent when they add up to the gross amount, which Snap requires.
func buildSnapRequest(order *fee.PaymentOrder, student academic.Student, lines []fee.ReceiptLine) *snap.Request {
	gross := order.Amount.Round(0).IntPart()
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  order.OrderRef,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: truncate(student.Name, 50),
			Email: student.ContactEmail,
		},
		CustomField1: string(order.Kind),
		CustomField2: order.StudentID.String(),
	}

	items := make([]midtrans.ItemDetails, 0, len(lines))
	var sum int64
	for n, l := range lines {
		price := l.Amount.Round(0).IntPart()
		sum += price
		items = append(items, midtrans.ItemDetails{
			ID:       fmt.Sprintf("%s-%d", order.OrderRef, n+1),
			Name:     truncate(l.Description, 50),
			Price:    price,
			Qty:      1,
			Category: "FEE",
		})
	}
	if len(items) > 0 && sum == gross {
		req.Items = &items
	}
	return req
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// NoopIssuer issues no checkout. Orders are still created and can be paid
// through whatever channel confirms them.
type NoopIssuer struct{}

// Issue returns an empty redirect
func (NoopIssuer) Issue(context.Context, *fee.PaymentOrder, academic.Student, []fee.ReceiptLine) (string, error) {
	return "", nil
}
