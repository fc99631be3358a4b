package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Mapping module and key constants used when building invoice and payment
// batches.
const (
	MappingModuleSales    = "SALES"
	MappingModulePayments = "PAYMENTS"

	MappingKeyReceivable = "AR"
	MappingKeyRevenue    = "SALES_REVENUE"
	MappingKeyTax        = "SALES_TAX"
)

// AccountMapping links a module key to a ledger account per company.
type AccountMapping struct {
	CompanyID int64
	Module    string
	Key       string
	AccountID int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MappingRepository resolves account mappings.
type MappingRepository interface {
	Get(ctx context.Context, companyID int64, module, key string) (AccountMapping, error)
}

type mappingRepository struct {
	pool *pgxpool.Pool
}

// NewMappingRepository constructs the pg-backed mapping store.
func NewMappingRepository(pool *pgxpool.Pool) MappingRepository {
	return &mappingRepository{pool: pool}
}

// Get resolves an account mapping for the specified key.
func (r *mappingRepository) Get(ctx context.Context, companyID int64, module, key string) (AccountMapping, error) {
	if module == "" || key == "" {
		return AccountMapping{}, ErrMappingNotFound
	}
	var m AccountMapping
	err := r.pool.QueryRow(ctx, `SELECT company_id, module, key, account_id, created_at, updated_at
FROM account_mappings WHERE company_id=$1 AND module=$2 AND key=$3`,
		companyID, strings.ToUpper(module), strings.ToUpper(key)).
		Scan(&m.CompanyID, &m.Module, &m.Key, &m.AccountID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, ErrMappingNotFound
		}
		return AccountMapping{}, err
	}
	return m, nil
}
