// Package orders creates Razorpay registration orders and tracks their
// payment records.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	razorpay "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("order not found")
var ErrGateway = errors.New("payment gateway error")

const (
	StatusCreated   = "created"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Registration fee in paise.
const registrationAmount = 100

type Payment struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"index;not null" json:"userId"`
	Username  string    `gorm:"not null" json:"username"`
	OrderID   string    `gorm:"uniqueIndex;not null" json:"orderId"`
	ReceiptID string    `gorm:"not null" json:"receiptId"`
	PaymentID string    `json:"paymentId,omitempty"`
	Status    string    `gorm:"default:created" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Service struct {
	client *razorpay.Client
	db     *gorm.DB
	log    *zap.Logger
}

func NewService(client *razorpay.Client, db *gorm.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{client: client, db: db, log: log}
}

// CreateOrder opens a gateway order and records it as a pending payment. The
// raw gateway order is returned so the frontend can start checkout.
func (s *Service) CreateOrder(ctx context.Context, userID, username string) (map[string]interface{}, error) {
	receiptID := fmt.Sprintf("receipt_asc_%s", uuid.NewString())

	order, err := s.client.Order.Create(map[string]interface{}{
		"amount":   registrationAmount,
		"currency": "INR",
		"receipt":  receiptID,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	orderID, _ := order["id"].(string)
	payment := Payment{
		UserID:    userID,
		Username:  username,
		OrderID:   orderID,
		ReceiptID: receiptID,
		Status:    StatusCreated,
	}
	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}

	s.log.Info("payment order created",
		zap.String("userId", userID),
		zap.String("orderId", orderID))
	return order, nil
}

// VerifyPayment marks the order completed once the gateway confirms it.
func (s *Service) VerifyPayment(ctx context.Context, orderID, paymentID string) (Payment, error) {
	res := s.db.WithContext(ctx).Model(&Payment{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{"status": StatusCompleted, "payment_id": paymentID})
	if res.Error != nil {
		return Payment{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Payment{}, ErrNotFound
	}

	var p Payment
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return Payment{}, err
	}
	return p, nil
}
