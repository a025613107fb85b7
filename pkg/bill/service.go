package bill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/sprinkle-app/sprinkle-go/pkg/sui"
)

// Ledger is the on-chain execution capability the service needs. The move
// contract itself (bill object lifecycle) is outside this backend.
type Ledger interface {
	ExecuteTransaction(ctx context.Context, txBytes []byte, signatures []string) (*sui.ExecuteResult, error)
}

// SignFunc produces a serialized signature over transaction bytes. The
// zkLogin signer provides one implementation; external wallets are another.
type SignFunc func(txBytes []byte) (string, error)

type Service struct {
	store     Store
	ledger    Ledger
	packageID string
}

func NewService(store Store, ledger Ledger, packageID string) *Service {
	return &Service{store: store, ledger: ledger, packageID: packageID}
}

func (s *Service) CreateGroup(name, icon, creator string) (*Group, error) {
	if name == "" {
		return nil, fmt.Errorf("group name is empty")
	}
	group := &Group{
		ID:        ksuid.New().String(),
		Name:      name,
		Icon:      icon,
		Members:   []string{creator},
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveGroup(group); err != nil {
		return nil, fmt.Errorf("unable to save group: %w", err)
	}
	return group, nil
}

func (s *Service) JoinGroup(groupID, member string) (*Group, error) {
	group, err := s.store.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	for _, m := range group.Members {
		if m == member {
			return group, nil
		}
	}
	group.Members = append(group.Members, member)
	if err := s.store.SaveGroup(group); err != nil {
		return nil, fmt.Errorf("unable to save group: %w", err)
	}
	return group, nil
}

func (s *Service) GetGroup(groupID string) (*Group, error) {
	return s.store.GetGroup(groupID)
}

func (s *Service) ListGroups(member string) ([]*Group, error) {
	return s.store.ListGroups(member)
}

// CreateBill registers the bill on-chain in the creditor's name and mirrors
// it into the store once execution succeeds.
func (s *Service) CreateBill(ctx context.Context, groupID, title, creditor string, debts []Debt, sign SignFunc) (*Bill, error) {
	group, err := s.store.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	if len(debts) == 0 {
		return nil, fmt.Errorf("bill has no debtors")
	}

	bill := &Bill{
		ID:        ksuid.New().String(),
		GroupID:   group.ID,
		Title:     title,
		Creditor:  creditor,
		CreatedAt: time.Now(),
	}

	debtors := make([]interface{}, 0, len(debts))
	values := make([]interface{}, 0, len(debts))
	for _, d := range debts {
		debt := d
		debt.Status = DebtStatusOpen
		bill.Debts = append(bill.Debts, debt)
		debtors = append(debtors, debt.Debtor)
		values = append(values, debt.Amount)
	}

	call := &sui.MoveCall{
		Sender: creditor,
		Target: s.packageID + "::bill::create_bill",
		Args:   []interface{}{bill.ID, debtors, values},
	}
	txBytes, err := call.Build()
	if err != nil {
		return nil, err
	}
	signature, err := sign(txBytes)
	if err != nil {
		return nil, fmt.Errorf("unable to sign bill creation: %w", err)
	}
	result, err := s.ledger.ExecuteTransaction(ctx, txBytes, []string{signature})
	if err != nil {
		return nil, fmt.Errorf("unable to execute bill creation: %w", err)
	}
	slog.Info("Bill created on-chain", "bill", bill.ID, "digest", result.Digest)

	if err := s.store.SaveBill(bill); err != nil {
		return nil, fmt.Errorf("unable to save bill: %w", err)
	}
	return bill, nil
}

func (s *Service) GetBill(billID string) (*Bill, error) {
	return s.store.GetBill(billID)
}

func (s *Service) ListBillsByGroup(groupID string) ([]*Bill, error) {
	return s.store.ListBillsByGroup(groupID)
}

// SettleDebt pays the debtor's share on-chain and marks it paid.
func (s *Service) SettleDebt(ctx context.Context, billID, debtor string, sign SignFunc) (*Bill, error) {
	bill, err := s.store.GetBill(billID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, d := range bill.Debts {
		if d.Debtor == debtor {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("no debt for %s on bill %s: %w", debtor, billID, ErrNotFound)
	}
	if bill.Debts[idx].Status == DebtStatusPaid {
		return bill, nil
	}

	call := &sui.MoveCall{
		Sender: debtor,
		Target: s.packageID + "::bill::pay_bill",
		Args:   []interface{}{bill.ID, bill.Debts[idx].Amount},
	}
	txBytes, err := call.Build()
	if err != nil {
		return nil, err
	}
	signature, err := sign(txBytes)
	if err != nil {
		return nil, fmt.Errorf("unable to sign payment: %w", err)
	}
	result, err := s.ledger.ExecuteTransaction(ctx, txBytes, []string{signature})
	if err != nil {
		return nil, fmt.Errorf("unable to execute payment: %w", err)
	}

	bill.Debts[idx].Status = DebtStatusPaid
	bill.Debts[idx].TxDigest = result.Digest
	if err := s.store.SaveBill(bill); err != nil {
		return nil, fmt.Errorf("unable to save bill: %w", err)
	}
	slog.Info("Debt settled", "bill", bill.ID, "debtor", debtor, "digest", result.Digest)
	return bill, nil
}
