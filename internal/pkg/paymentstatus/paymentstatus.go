// Package paymentstatus turns registration status and reason codes into
// display labels. It knows nothing about storage or the payment flow.
package paymentstatus

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/ManuelReschke/ConfDesk/app/models"
)

// Tone hints how a UI should colour the label.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneInfo    Tone = "info"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
)

// Message is the translated view of a status/reason pair.
type Message struct {
	Label   string `json:"label"`
	Message string `json:"message"`
	Tone    Tone   `json:"tone"`
}

var supported = []language.Tag{language.English, language.German}

var matcher = language.NewMatcher(supported)

type catalogue struct {
	status map[string]Message
	reason map[string]string
}

var catalogues = map[language.Tag]catalogue{
	language.English: {
		status: map[string]Message{
			models.RegistrationStatusUnpaid:              {Label: "Unpaid", Message: "Your registration fee has not been paid yet.", Tone: ToneWarning},
			models.RegistrationStatusPendingConfirmation: {Label: "Awaiting confirmation", Message: "We are waiting for the payment provider to confirm your payment.", Tone: ToneInfo},
			models.RegistrationStatusPaidConfirmed:       {Label: "Paid", Message: "Your payment has been received. See you at the conference!", Tone: ToneSuccess},
		},
		reason: map[string]string{
			models.ReasonDeclined:       "Your payment was declined. Please try another payment method.",
			models.ReasonInvalidDetails: "The payment could not be processed. Please check your payment details and try again.",
			models.ReasonPendingTimeout: "Your payment was not confirmed in time. Please start the payment again.",
		},
	},
	language.German: {
		status: map[string]Message{
			models.RegistrationStatusUnpaid:              {Label: "Unbezahlt", Message: "Die Teilnahmegebühr wurde noch nicht bezahlt.", Tone: ToneWarning},
			models.RegistrationStatusPendingConfirmation: {Label: "Bestätigung ausstehend", Message: "Wir warten auf die Bestätigung des Zahlungsanbieters.", Tone: ToneInfo},
			models.RegistrationStatusPaidConfirmed:       {Label: "Bezahlt", Message: "Deine Zahlung ist eingegangen. Wir sehen uns auf der Konferenz!", Tone: ToneSuccess},
		},
		reason: map[string]string{
			models.ReasonDeclined:       "Deine Zahlung wurde abgelehnt. Bitte versuche es mit einer anderen Zahlungsart.",
			models.ReasonInvalidDetails: "Die Zahlung konnte nicht verarbeitet werden. Bitte prüfe deine Zahlungsdaten.",
			models.ReasonPendingTimeout: "Deine Zahlung wurde nicht rechtzeitig bestätigt. Bitte starte die Zahlung erneut.",
		},
	},
}

// Match picks the best supported language for an Accept-Language header or
// a plain tag like "de". Unknown input falls back to English.
func Match(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// Translate returns the message for status and reason in lang. A known
// reason replaces the status message; unknown statuses read as unpaid.
func Translate(status, reasonCode string, lang language.Tag) Message {
	cat, ok := catalogues[lang]
	if !ok {
		cat = catalogues[Match(lang.String())]
	}

	msg, ok := cat.status[models.NormalizeRegistrationStatus(status)]
	if !ok {
		msg = cat.status[models.RegistrationStatusUnpaid]
	}
	if text, ok := cat.reason[strings.ToLower(strings.TrimSpace(reasonCode))]; ok {
		msg.Message = text
		if msg.Tone == ToneWarning {
			msg.Tone = ToneDanger
		}
	}
	return msg
}

// TranslateFor is Translate with an Accept-Language header.
func TranslateFor(status, reasonCode, acceptLanguage string) Message {
	return Translate(status, reasonCode, Match(acceptLanguage))
}
