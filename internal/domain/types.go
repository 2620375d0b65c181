package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CategoryAll disables category filtering in derived views.
const CategoryAll = "all"

// CategoryUnknown is sent for manual intents that carry no category.
const CategoryUnknown = "unknown"

// Status records who produced a wishlist entry.
type Status string

const (
	StatusAIGenerated Status = "ai_generated"
	StatusManual      Status = "manual"
)

// Action is the wishlist change an Intent asks for.
type Action uint8

const (
	ActionUnknown Action = iota
	ActionAdd
	ActionRemove
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ParseAction maps the wire value onto an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add":
		return ActionAdd, nil
	case "remove":
		return ActionRemove, nil
	case "delete":
		return ActionDelete, nil
	default:
		return ActionUnknown, fmt.Errorf("unsupported action %q", s)
	}
}

func (a Action) MarshalText() ([]byte, error) {
	if a == ActionUnknown {
		return nil, fmt.Errorf("cannot encode unknown action")
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	parsed, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Intent is one desired wishlist change, produced by the speech service or
// synthesized locally for manual actions. It is never persisted.
type Intent struct {
	Product  string `json:"product" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=1"`
	Category string `json:"category"`
	Action   Action `json:"action" validate:"required"`
	Status   Status `json:"status" validate:"oneof=ai_generated manual"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks an intent before it is sent to the backend.
func (i Intent) Validate() error {
	if err := validate.Struct(i); err != nil {
		return fmt.Errorf("invalid intent: %w", err)
	}
	return nil
}

// ManualIntent builds a manual-status intent.
func ManualIntent(action Action, product string, quantity int, category string) Intent {
	if quantity < 1 {
		quantity = 1
	}
	if strings.TrimSpace(category) == "" {
		category = CategoryUnknown
	}
	return Intent{
		Product:  product,
		Quantity: quantity,
		Category: category,
		Action:   action,
		Status:   StatusManual,
	}
}

// WishlistItem is one entry of a user's wishlist as echoed by the backend.
type WishlistItem struct {
	Product   string    `json:"product"`
	Quantity  int       `json:"quantity"`
	Category  string    `json:"category"`
	Status    Status    `json:"status"`
	Timestamp Timestamp `json:"timestamp"`
}

// Product is a recommended store product.
type Product struct {
	Product  string  `json:"product"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

// StoreProduct is a catalog entry; Stock is the backend's quantity field.
type StoreProduct struct {
	Product  string  `json:"product"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
}

// VoiceResult is the transcription plus the intent derived from it.
type VoiceResult struct {
	RecognizedText string `json:"recognized_text"`
	Intent         Intent `json:"llm_response"`
}

// Timestamp accepts RFC 3339 as well as naive ISO-8601 (assumed UTC).
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognised format %q", raw)
}
