package httpserver

import (
	"fmt"
	"strings"
	"time"

	"topup-store/internal/repo"
)

type receiptLabels struct {
	title, category, amount, phone, player, date, number, status string
}

var receiptText = map[string]receiptLabels{
	"en": {"Top-up Receipt", "Category", "Amount", "Phone", "Player ID", "Date", "Receipt No.", "Status"},
	"my": {"ငွေဖြည့်ပြေစာ", "အမျိုးအစား", "ပမာဏ", "ဖုန်းနံပါတ်", "ကစားသမား ID", "ရက်စွဲ", "ပြေစာနံပါတ်", "အခြေအနေ"},
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return strings.ToUpper(id)
}

// renderReceipt formats a fulfilled order as plain text in lang, English by default.
func renderReceipt(o *repo.Order, lang string) string {
	l, ok := receiptText[lang]
	if !ok {
		l = receiptText["en"]
	}
	at := o.CreatedAt
	if o.ProcessedAt != nil {
		at = *o.ProcessedAt
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", l.title)
	b.WriteString(strings.Repeat("-", 32) + "\n")
	fmt.Fprintf(&b, "%s: %s\n", l.category, strings.ReplaceAll(o.CategoryType, "_", " "))
	fmt.Fprintf(&b, "%s: %s %s\n", l.amount, o.Amount.StringFixed(2), o.Currency)
	if o.PhoneNumber != nil {
		fmt.Fprintf(&b, "%s: %s\n", l.phone, *o.PhoneNumber)
	}
	if o.PlayerID != nil {
		fmt.Fprintf(&b, "%s: %s\n", l.player, *o.PlayerID)
	}
	fmt.Fprintf(&b, "%s: %s\n", l.status, repo.StatusApproved)
	fmt.Fprintf(&b, "%s: %s\n", l.date, at.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "%s: #%s\n", l.number, shortID(o.ID))
	return b.String()
}
