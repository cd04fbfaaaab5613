package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReceiptLineItem is one extracted item from a receipt. The AI extraction
// collaborator produces loosely typed JSON; this is the validated boundary
// type the engine operates on internally.
type ReceiptLineItem struct {
	PurchasedAt time.Time
	ID          string
	UserID      string
	ReceiptID   string
	Name        string
	Category    string
	Price       float64
	Quantity    float64
}

// ParseLineItem validates and coerces a raw extraction record into a
// ReceiptLineItem. Name is required; price and quantity accept numbers or
// numeric strings, since the extraction output is not consistent about it.
func ParseLineItem(raw map[string]any) (ReceiptLineItem, error) {
	item := ReceiptLineItem{Quantity: 1}

	name, ok := raw["name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return ReceiptLineItem{}, fmt.Errorf("line item missing name: %v", raw)
	}
	item.Name = strings.TrimSpace(name)

	if v, ok := raw["price"]; ok {
		price, err := coerceNumber(v)
		if err != nil {
			return ReceiptLineItem{}, fmt.Errorf("line item %q: bad price: %w", item.Name, err)
		}
		item.Price = price
	}

	if v, ok := raw["quantity"]; ok {
		qty, err := coerceNumber(v)
		if err != nil {
			return ReceiptLineItem{}, fmt.Errorf("line item %q: bad quantity: %w", item.Name, err)
		}
		if qty > 0 {
			item.Quantity = qty
		}
	}

	if v, ok := raw["category"].(string); ok {
		item.Category = strings.TrimSpace(v)
	}

	return item, nil
}

func coerceNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", "."))
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}
