package command

import (
	"context"
	"time"

	"idstore/internal/domain"
	"idstore/internal/policy"
)

// BanCreate suppresses logins for a user. A nil expiry makes the ban
// permanent.
type BanCreate struct {
	PrincipalID string
	Reason      string
	ExpiresAt   *time.Time
}

func (BanCreate) Action(actor *domain.Principal) policy.Action {
	return policy.BanWrite{Actor: actor}
}

func (c BanCreate) Run(ctx context.Context, cc *Context) (BanResponse, error) {
	if c.Reason == "" {
		return BanResponse{}, domain.ErrValidation("a ban requires a reason")
	}
	// The target must exist; bans on admins are allowed as well.
	target, err := cc.Tx.Principals().GetByID(ctx, c.PrincipalID)
	if err != nil {
		return BanResponse{}, err
	}
	b := &domain.Ban{
		ID:          domain.NewID(),
		PrincipalID: target.ID,
		Reason:      c.Reason,
		ExpiresAt:   c.ExpiresAt,
		CreatedAt:   cc.Now,
	}
	if err := cc.Tx.Bans().Create(ctx, b); err != nil {
		return BanResponse{}, err
	}
	cc.Emit(domain.AuditEvent{
		Type:  domain.EventBanCreated,
		Owner: target.ID,
		Data:  map[string]string{"reason": c.Reason, "actor": cc.Actor.ID},
	})
	return BanResponse{Ban: b}, nil
}

// BanDelete lifts a ban.
type BanDelete struct {
	BanID string
}

func (BanDelete) Action(actor *domain.Principal) policy.Action {
	return policy.BanWrite{Actor: actor}
}

func (c BanDelete) Run(ctx context.Context, cc *Context) (Empty, error) {
	if err := cc.Tx.Bans().Delete(ctx, c.BanID); err != nil {
		return Empty{}, err
	}
	cc.Emit(domain.AuditEvent{
		Type:  domain.EventBanDeleted,
		Owner: c.BanID,
		Data:  map[string]string{"actor": cc.Actor.ID},
	})
	return Empty{}, nil
}
