package payments

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SandboxGateway is an in-memory gateway for local runs and tests. It
// authorizes everything except payment methods prefixed "declined-" and
// keeps its transaction book so Capture/Void/Refund validate their inputs.
type SandboxGateway struct {
	mu   sync.Mutex
	txns map[string]string // txn id -> state: authorized | captured | voided | refunded
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{txns: make(map[string]string)}
}

func (g *SandboxGateway) PreAuthorize(_ context.Context, req AuthRequest) (string, error) {
	if strings.HasPrefix(req.PaymentMethod, "declined-") {
		return "", &GatewayError{Code: "card_declined", Message: "insufficient funds"}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := "auth_" + uuid.NewString()
	g.txns[id] = "authorized"
	return id, nil
}

func (g *SandboxGateway) Capture(_ context.Context, preauthTxnID string, _ int64, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.txns[preauthTxnID] != "authorized" {
		return "", &GatewayError{Code: "not_authorized", Message: "no capturable authorization " + preauthTxnID}
	}
	g.txns[preauthTxnID] = "captured"
	id := "cap_" + uuid.NewString()
	g.txns[id] = "captured"
	return id, nil
}

func (g *SandboxGateway) Void(_ context.Context, preauthTxnID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	// Unknown ids pass: another process may have issued the authorization.
	state := g.txns[preauthTxnID]
	if state == "captured" || state == "refunded" {
		return &GatewayError{Code: "not_voidable", Message: "authorization " + preauthTxnID + " is " + state}
	}
	g.txns[preauthTxnID] = "voided"
	return nil
}

func (g *SandboxGateway) Refund(_ context.Context, captureTxnID string, _ int64, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.txns[captureTxnID] != "captured" {
		return "", &GatewayError{Code: "not_refundable", Message: "no captured transaction " + captureTxnID}
	}
	g.txns[captureTxnID] = "refunded"
	id := "ref_" + uuid.NewString()
	g.txns[id] = "refunded"
	return id, nil
}
