package postgres

import (
	"context"
	"database/sql"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// VoucherRepository is a PostgreSQL implementation of repository.VoucherRepository.
type VoucherRepository struct {
	q Querier
}

// NewVoucherRepository creates a new PostgreSQL voucher repository.
func NewVoucherRepository(db *sql.DB) *VoucherRepository {
	return &VoucherRepository{q: db}
}

const voucherColumns = `id, code, type, value, max_value, max_uses, current_uses, expires_at, single_use`

// GetByCode retrieves a voucher by its code.
func (r *VoucherRepository) GetByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	return r.get(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE code = $1`, code)
}

// GetByID retrieves a voucher by ID.
func (r *VoucherRepository) GetByID(ctx context.Context, id string) (*domain.Voucher, error) {
	return r.get(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE id = $1`, id)
}

func (r *VoucherRepository) get(ctx context.Context, query, arg string) (*domain.Voucher, error) {
	var v domain.Voucher
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&v.ID,
		&v.Code,
		&v.Type,
		&v.Value,
		&v.MaxValue,
		&v.MaxUses,
		&v.CurrentUses,
		&v.ExpiresAt,
		&v.SingleUse,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &v, nil
}

// IncrementUses bumps current_uses while it is below max_uses.
func (r *VoucherRepository) IncrementUses(ctx context.Context, id string) error {
	query := `UPDATE vouchers SET current_uses = current_uses + 1 WHERE id = $1 AND current_uses < max_uses`

	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	if err := requireAffected(result); err != nil {
		return repository.ErrConflict
	}
	return nil
}

// Ensure VoucherRepository implements repository.VoucherRepository.
var _ repository.VoucherRepository = (*VoucherRepository)(nil)
