// Package receipt предоставляет клиент внешнего сервиса документов, который формирует
// и отправляет покупателю чек об оплате.
package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/plantshop/internal/model"
)

// Client инкапсулирует HTTP-взаимодействие с сервисом чеков.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Line описывает строку чека.
type Line struct {
	SupplyID  uuid.UUID       `json:"supplyId"`
	PlantName string          `json:"plantName"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Request содержит тело запроса на формирование чека.
type Request struct {
	OrderID         uuid.UUID         `json:"orderId"`
	BuyerEmail      string            `json:"buyerEmail"`
	DeliveryAddress string            `json:"deliveryAddress"`
	PaymentType     model.PaymentType `json:"paymentType"`
	TotalPrice      decimal.Decimal   `json:"totalPrice"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
	Lines           []Line            `json:"lines"`
}

// RateLimitError возвращается, когда сервис просит повторить запрос позже.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("receipt service rate limited, retry after %s", e.RetryAfter)
}

// NewClient создаёт HTTP-клиент для обращения к сервису чеков по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// NewRequest собирает чек по завершённому заказу.
func NewRequest(order *model.Order, buyerEmail string) Request {
	req := Request{
		OrderID:         order.ID,
		BuyerEmail:      buyerEmail,
		DeliveryAddress: order.DeliveryAddress,
		PaymentType:     order.PaymentType,
		TotalPrice:      order.TotalPrice,
		CompletedAt:     order.CompletedAt,
		Lines:           make([]Line, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		line := Line{
			SupplyID: item.SupplyID,
			Quantity: item.Quantity,
			Subtotal: item.Subtotal,
		}
		if item.Supply != nil && item.Supply.Plant != nil {
			line.PlantName = item.Supply.Plant.Name
		}
		req.Lines = append(req.Lines, line)
	}
	return req
}

// Send отправляет чек. Ответ 429 возвращается как *RateLimitError.
func (c *Client) Send(ctx context.Context, r Request) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("receipt client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/receipts", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
