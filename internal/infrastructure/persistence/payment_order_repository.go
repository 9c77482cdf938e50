package persistence

import (
	"context"
	"time"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/infrastructure/persistence/models"
	"github.com/feeledger/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentOrderRepository implements fee.PaymentOrderRepository using GORM
type GormPaymentOrderRepository struct {
	db *gorm.DB
}

// NewGormPaymentOrderRepository creates a new GormPaymentOrderRepository
func NewGormPaymentOrderRepository(db *gorm.DB) *GormPaymentOrderRepository {
	return &GormPaymentOrderRepository{db: db}
}

// Create inserts a new order
func (r *GormPaymentOrderRepository) Create(ctx context.Context, order *fee.PaymentOrder) error {
	return r.db.WithContext(ctx).Create(models.PaymentOrderModelFromDomain(order)).Error
}

// UpdateRedirect stores the checkout URL returned by the gateway
func (r *GormPaymentOrderRepository) UpdateRedirect(ctx context.Context, order *fee.PaymentOrder) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentOrderModel{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{"redirect_url": order.RedirectURL, "updated_at": time.Now()}).Error
}

// FindByRef finds an order by its reference
func (r *GormPaymentOrderRepository) FindByRef(ctx context.Context, tenantID uuid.UUID, orderRef string) (*fee.PaymentOrder, error) {
	return r.findByRef(r.db.WithContext(ctx), tenantID, orderRef)
}

// FindByRefForUpdate finds an order by its reference and locks it
func (r *GormPaymentOrderRepository) FindByRefForUpdate(ctx context.Context, tenantID uuid.UUID, orderRef string) (*fee.PaymentOrder, error) {
	return r.findByRef(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, orderRef)
}

func (r *GormPaymentOrderRepository) findByRef(db *gorm.DB, tenantID uuid.UUID, orderRef string) (*fee.PaymentOrder, error) {
	var model models.PaymentOrderModel
	if err := db.Scopes(tenant.TenantScope(tenantID)).Where("order_ref = ?", orderRef).First(&model).Error; err != nil {
		if errIsNotFound(err) {
			return nil, fee.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// MarkPaid records the gateway transaction on a still-open order
func (r *GormPaymentOrderRepository) MarkPaid(ctx context.Context, order *fee.PaymentOrder) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentOrderModel{}).
		Where("id = ? AND status = ?", order.ID, fee.OrderStatusCreated).
		Updates(map[string]any{
			"status":          fee.OrderStatusPaid,
			"transaction_ref": order.TransactionRef,
			"paid_at":         order.PaidAt,
			"updated_at":      order.UpdatedAt,
			"version":         gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fee.ErrAlreadySettled
	}
	return nil
}

// PurgeSession deletes every order of the session
func (r *GormPaymentOrderRepository) PurgeSession(ctx context.Context, scope academic.Scope) (int64, error) {
	result := r.db.WithContext(ctx).Scopes(tenant.SessionScope(scope)).Delete(&models.PaymentOrderModel{})
	return result.RowsAffected, result.Error
}

var _ fee.PaymentOrderRepository = (*GormPaymentOrderRepository)(nil)
