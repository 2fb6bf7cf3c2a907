package memory

import "ledgerpay/internal/models"

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyUint(p *uint) *uint {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyUser(u *models.User) *models.User {
	out := *u
	out.Phone = copyString(u.Phone)
	out.VerificationID = copyString(u.VerificationID)
	out.Wallet = nil
	out.LimitTracker = nil
	return &out
}

func copyWallet(w *models.Wallet) *models.Wallet {
	out := *w
	out.AccountNumber = copyString(w.AccountNumber)
	out.BankName = copyString(w.BankName)
	out.AccountName = copyString(w.AccountName)
	out.AccountReference = copyString(w.AccountReference)
	return &out
}

func copyEntry(e *models.Transaction) *models.Transaction {
	out := *e
	out.PairReference = copyString(e.PairReference)
	out.CounterpartyID = copyUint(e.CounterpartyID)
	out.Metadata = e.Metadata.Clone()
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

func copyUpgrade(r *models.TierUpgradeRequest) *models.TierUpgradeRequest {
	out := *r
	out.VerificationID = copyString(r.VerificationID)
	out.ReviewerID = copyUint(r.ReviewerID)
	if r.Documents != nil {
		out.Documents = append([]string(nil), r.Documents...)
	}
	if r.ReviewedAt != nil {
		t := *r.ReviewedAt
		out.ReviewedAt = &t
	}
	return &out
}
