package sendgrid

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
)

// OrderNotifier mails the buyer a summary of a committed order.
type OrderNotifier struct {
	email EmailService
}

func NewOrderNotifier(email EmailService) *OrderNotifier {
	return &OrderNotifier{email: email}
}

func (n *OrderNotifier) NotifyOrderCreated(ctx context.Context, order *models.Order) error {
	return n.email.Send(ctx, ConfirmationEmail(order))
}

// ConfirmationEmail renders the confirmation message for order.
func ConfirmationEmail(order *models.Order) *models.EmailNotificationRequest {
	var text, markup strings.Builder

	fmt.Fprintf(&text, "Hi %s,\n\nThanks for your order %s.\n\n", order.BillingInfo.FirstName, order.ID)
	fmt.Fprintf(&markup, "<p>Hi %s,</p><p>Thanks for your order %s.</p><ul>",
		html.EscapeString(order.BillingInfo.FirstName), order.ID)

	for _, item := range order.Items {
		line := fmt.Sprintf("%d x %s%s @ %s", item.Quantity, item.ProductName, variantLabel(item), item.ProductPrice.StringFixed(2))
		fmt.Fprintf(&text, "  %s\n", line)
		fmt.Fprintf(&markup, "<li>%s</li>", html.EscapeString(line))
	}

	totals := fmt.Sprintf("Subtotal %s, Shipping %s, Tax %s, Total %s",
		order.Subtotal.StringFixed(2), order.Shipping.StringFixed(2), order.Tax.StringFixed(2), order.Total.StringFixed(2))

	fmt.Fprintf(&text, "\n%s\n", totals)
	fmt.Fprintf(&markup, "</ul><p>%s</p>", totals)

	return &models.EmailNotificationRequest{
		To:          order.BillingInfo.Email,
		Subject:     fmt.Sprintf("Order %s confirmed", order.ID),
		Content:     text.String(),
		HTMLContent: markup.String(),
	}
}

func variantLabel(item models.OrderItem) string {
	var parts []string
	if item.Size != nil {
		parts = append(parts, *item.Size)
	}

	if item.Color != nil {
		parts = append(parts, *item.Color)
	}

	if len(parts) == 0 {
		return ""
	}

	return " (" + strings.Join(parts, ", ") + ")"
}
