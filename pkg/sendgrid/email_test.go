package sendgrid_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	sendgrid_client "github.com/aaravmahajanofficial/storefront-checkout/pkg/sendgrid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey    = "SG.test-api-key"
	testFromEmail = "orders@example.com"
	testFromName  = "Storefront"
)

type mailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sentMail struct {
	Personalizations []struct {
		To      []mailAddress `json:"to"`
		Cc      []mailAddress `json:"cc,omitempty"`
		Bcc     []mailAddress `json:"bcc,omitempty"`
		Subject string        `json:"subject"`
	} `json:"personalizations"`
	From    mailAddress `json:"from"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

// newSendGridStub answers every mail/send call with status and records the
// decoded payload and auth header of the last call.
func newSendGridStub(t *testing.T, status int) (*httptest.Server, *sentMail, *string) {
	t.Helper()

	var (
		got  sentMail
		auth string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")

		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	return srv, &got, &auth
}

func newStubbedService(baseURL string) sendgrid_client.EmailService {
	svc := sendgrid_client.NewEmailService(testAPIKey, testFromEmail, testFromName)
	svc.GetSendGridClient().Request.BaseURL = baseURL

	return svc
}

func TestEmailService_Send(t *testing.T) {
	t.Run("Order Confirmation Delivered", func(t *testing.T) {
		// Arrange
		srv, got, auth := newSendGridStub(t, http.StatusAccepted)
		svc := newStubbedService(srv.URL)
		req := sendgrid_client.ConfirmationEmail(confirmationOrder())

		// Act
		err := svc.Send(t.Context(), req)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "Bearer "+testAPIKey, *auth)
		assert.Equal(t, mailAddress{Email: testFromEmail, Name: testFromName}, got.From)
		require.Len(t, got.Personalizations, 1)
		assert.Equal(t, []mailAddress{{Email: "jane@example.com"}}, got.Personalizations[0].To)
		assert.Equal(t, req.Subject, got.Personalizations[0].Subject)
		require.Len(t, got.Content, 2)
		assert.Equal(t, "text/plain", got.Content[0].Type)
		assert.Contains(t, got.Content[0].Value, "Total 86.40")
		assert.Equal(t, "text/html", got.Content[1].Type)
	})

	t.Run("Copies And Plain Text Only", func(t *testing.T) {
		// Arrange
		srv, got, _ := newSendGridStub(t, http.StatusAccepted)
		svc := newStubbedService(srv.URL)

		// Act
		err := svc.Send(t.Context(), &models.EmailNotificationRequest{
			To:      "buyer@example.com",
			CC:      []string{"support@example.com"},
			BCC:     []string{"audit@example.com", "ledger@example.com"},
			Subject: "Order update",
			Content: "Your order shipped",
		})

		// Assert
		require.NoError(t, err)
		require.Len(t, got.Personalizations, 1)
		assert.Equal(t, []mailAddress{{Email: "support@example.com"}}, got.Personalizations[0].Cc)
		assert.Len(t, got.Personalizations[0].Bcc, 2)
		require.Len(t, got.Content, 1)
		assert.Equal(t, "Your order shipped", got.Content[0].Value)
	})

	for _, status := range []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusInternalServerError} {
		t.Run("Rejected With "+http.StatusText(status), func(t *testing.T) {
			// Arrange
			srv, _, _ := newSendGridStub(t, status)
			svc := newStubbedService(srv.URL)

			// Act
			err := svc.Send(t.Context(), sendgrid_client.ConfirmationEmail(confirmationOrder()))

			// Assert
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to send email, status code")
		})
	}

	t.Run("Unreachable API", func(t *testing.T) {
		// Arrange
		srv, _, _ := newSendGridStub(t, http.StatusAccepted)
		svc := newStubbedService(srv.URL)
		srv.Close()

		// Act
		err := svc.Send(t.Context(), sendgrid_client.ConfirmationEmail(confirmationOrder()))

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to send email")
	})
}
