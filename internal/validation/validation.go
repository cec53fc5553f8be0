// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ErrInvalid оборачивает любые ошибки формата запроса.
var ErrInvalid = errors.New("validation error")

const (
	// MaxSupplyCount задаёт наибольшее количество единиц в одной поставке.
	MaxSupplyCount = 10_000
	// MaxQuantity задаёт наибольшее количество единиц одной позиции заказа.
	MaxQuantity = 10_000
)

var (
	maxPrice   = decimal.NewFromInt(10_000)
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Errorf создаёт ошибку валидации с описанием.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// IsValidPhone проверяет телефон в формате "+" и 12 цифр.
func IsValidPhone(phone string) bool {
	if len(phone) != 13 || phone[0] != '+' {
		return false
	}
	for _, ch := range phone[1:] {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// IsValidEmail выполняет поверхностную проверку адреса почты.
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// IsBlank сообщает, что строка пуста или состоит из пробелов.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Price проверяет, что цена положительна, не больше 10000 и задана с точностью до копеек.
func Price(price decimal.Decimal) error {
	if !price.IsPositive() {
		return Errorf("price must be positive")
	}
	if price.GreaterThan(maxPrice) {
		return Errorf("price must not exceed %s", maxPrice)
	}
	if !price.Equal(price.Round(2)) {
		return Errorf("price must have at most two decimal places")
	}
	return nil
}

// SupplyCount проверяет размер поставки.
func SupplyCount(count int) error {
	if count < 1 || count > MaxSupplyCount {
		return Errorf("count must be between 1 and %d", MaxSupplyCount)
	}
	return nil
}

// Quantity проверяет количество единиц в позиции заказа.
func Quantity(quantity int) error {
	if quantity < 1 || quantity > MaxQuantity {
		return Errorf("quantity must be between 1 and %d", MaxQuantity)
	}
	return nil
}
