package orders

import (
	"time"

	"github.com/google/uuid"

	internalorders "github.com/phamdt/aurora-backend/internal/orders"
	"github.com/phamdt/aurora-backend/pkg/db/models"
)

type orderItemResponse struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	UnitPrice   int64     `json:"unit_price"`
	Qty         int       `json:"qty"`
	LineTotal   int64     `json:"line_total"`
}

type transactionResponse struct {
	TxnRef       string     `json:"txn_ref"`
	Amount       int64      `json:"amount"`
	ResponseCode string     `json:"response_code,omitempty"`
	Verified     bool       `json:"verified"`
	Success      bool       `json:"success"`
	Message      string     `json:"message,omitempty"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type shippingResponse struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Street   string `json:"street"`
	Ward     string `json:"ward"`
	District string `json:"district"`
	City     string `json:"city"`
}

type orderResponse struct {
	ID             uuid.UUID             `json:"id"`
	CustomerID     uuid.UUID             `json:"customer_id"`
	Status         string                `json:"status"`
	PaymentStatus  string                `json:"payment_status"`
	PaymentMethod  string                `json:"payment_method"`
	Subtotal       int64                 `json:"subtotal"`
	DiscountAmount int64                 `json:"discount_amount"`
	Total          int64                 `json:"total"`
	DiscountCode   *string               `json:"discount_code,omitempty"`
	Note           *string               `json:"note,omitempty"`
	Shipping       shippingResponse      `json:"shipping"`
	Items          []orderItemResponse   `json:"items,omitempty"`
	Transactions   []transactionResponse `json:"transactions,omitempty"`
	DeliveredAt    *time.Time            `json:"delivered_at,omitempty"`
	CancelledAt    *time.Time            `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type returnRequestResponse struct {
	ID         uuid.UUID  `json:"id"`
	OrderID    uuid.UUID  `json:"order_id"`
	Reason     string     `json:"reason"`
	Approved   bool       `json:"approved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Qty:         item.Qty,
			LineTotal:   item.LineTotal,
		})
	}

	transactions := make([]transactionResponse, 0, len(order.Transactions))
	for _, txn := range order.Transactions {
		transactions = append(transactions, transactionResponse{
			TxnRef:       txn.TxnRef,
			Amount:       txn.Amount,
			ResponseCode: txn.ResponseCode,
			Verified:     txn.Verified,
			Success:      txn.Success,
			Message:      txn.Message,
			VerifiedAt:   txn.VerifiedAt,
			CreatedAt:    txn.CreatedAt,
		})
	}

	return orderResponse{
		ID:             order.ID,
		CustomerID:     order.CustomerID,
		Status:         order.Status.String(),
		PaymentStatus:  order.PaymentStatus.String(),
		PaymentMethod:  order.PaymentMethod.String(),
		Subtotal:       order.Subtotal,
		DiscountAmount: order.DiscountAmount,
		Total:          order.Total,
		DiscountCode:   order.DiscountCode,
		Note:           order.Note,
		Shipping: shippingResponse{
			FullName: order.ShipFullName,
			Phone:    order.ShipPhone,
			Street:   order.ShipStreet,
			Ward:     order.ShipWard,
			District: order.ShipDistrict,
			City:     order.ShipCity,
		},
		Items:        items,
		Transactions: transactions,
		DeliveredAt:  order.DeliveredAt,
		CancelledAt:  order.CancelledAt,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
	}
}

func newOrderListResponse(list *internalorders.OrderList) orderListResponse {
	items := make([]orderResponse, 0, len(list.Orders))
	for i := range list.Orders {
		items = append(items, newOrderResponse(&list.Orders[i]))
	}
	return orderListResponse{Orders: items, NextCursor: list.NextCursor}
}

func newReturnRequestResponse(request *models.ReturnRequest) returnRequestResponse {
	return returnRequestResponse{
		ID:         request.ID,
		OrderID:    request.OrderID,
		Reason:     request.Reason,
		Approved:   request.Approved,
		ResolvedAt: request.ResolvedAt,
		CreatedAt:  request.CreatedAt,
	}
}
