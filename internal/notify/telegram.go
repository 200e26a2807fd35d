package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier posts order events to an admin chat.
type TelegramNotifier struct {
	botToken    string
	adminChatID string
	baseURL     string
	client      *http.Client
	logger      *zap.Logger
}

func NewTelegramNotifier(botToken, adminChatID string, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		botToken:    botToken,
		adminChatID: adminChatID,
		baseURL:     telegramAPI,
		client:      &http.Client{Timeout: 5 * time.Second},
		logger:      logger,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends an HTML message to the given chat.
func (t *TelegramNotifier) SendMessage(ctx context.Context, chatID, text string) error {
	if t.botToken == "" {
		t.logger.Debug("telegram bot token not configured")
		return nil
	}

	body, err := json.Marshal(telegramMessage{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("telegram send failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("telegram unexpected status", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, event OrderEvent) error {
	if t.adminChatID == "" {
		return nil
	}
	var text string
	switch event.Type {
	case OrderPlaced:
		text = formatPlaced(event)
	case OrderCancelled:
		text = fmt.Sprintf("<b>Order cancelled</b>\n<b>Order:</b> %s\n<b>Total:</b> %s",
			event.OrderNumber, FormatPrice(event.Total))
	default:
		return nil
	}
	return t.SendMessage(ctx, t.adminChatID, text)
}

func formatPlaced(event OrderEvent) string {
	var lines strings.Builder
	for i, l := range event.Lines {
		fmt.Fprintf(&lines, "%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1, l.Name, l.Quantity, FormatPrice(l.Price), FormatPrice(l.Subtotal))
	}

	customer := "registered user " + event.UserID
	if event.GuestEmail != "" {
		customer = fmt.Sprintf("%s (%s, %s)", event.GuestName, event.GuestEmail, event.GuestPhone)
	}

	return strings.TrimSpace(fmt.Sprintf(`<b>New order</b>
<b>Order:</b> %s
<b>Customer:</b> %s
<b>Items:</b>
%s
<b>Subtotal:</b> %s
<b>Tax:</b> %s
<b>Shipping:</b> %s
<b>Total:</b> %s`,
		event.OrderNumber,
		customer,
		lines.String(),
		FormatPrice(event.Subtotal),
		FormatPrice(event.Tax),
		FormatPrice(event.ShippingFee),
		FormatPrice(event.Total),
	))
}

// FormatPrice renders an amount with thousand separators and two decimals.
func FormatPrice(amount decimal.Decimal) string {
	str := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(str, "-") {
		sign, str = "-", str[1:]
	}
	intPart, frac, _ := strings.Cut(str, ".")

	var result strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}
	return sign + "$" + result.String() + "." + frac
}
