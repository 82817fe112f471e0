package queue

import (
	"bytes"
	"fmt"
	"html/template"
)

// message is the data every email template receives.
type message struct {
	Event
	Hotel string
}

type emailTemplate struct {
	subject func(m message) string
	body    *template.Template
}

const layout = `{{define "layout"}}<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#333;max-width:600px;margin:auto">
<div style="background:#2E7D32;color:#fff;padding:16px"><h2 style="margin:0">{{.Hotel}}</h2></div>
<div style="padding:16px">
<p>Dear {{.Name}},</p>
{{template "content" .}}
<p style="color:#777;font-size:12px">This message was sent automatically, please do not reply.</p>
</div></body></html>{{end}}`

const reservationBlock = `{{define "reservation"}}{{with .Reservation}}
<table style="border-collapse:collapse;width:100%">
<tr><td>Code</td><td><strong>{{.Code}}</strong></td></tr>
<tr><td>Check-in</td><td>{{.CheckIn}}</td></tr>
<tr><td>Check-out</td><td>{{.CheckOut}}</td></tr>
<tr><td>Guests</td><td>{{.Guests}}</td></tr>
</table>
<ul>{{range .Rooms}}<li>Room {{.Number}} ({{.Type}}): {{.Nights}} night(s) at ${{.PricePerNight}}</li>{{end}}</ul>
<p>Total: <strong>${{.Total}}</strong></p>{{end}}{{end}}`

func mustTemplate(name, content string) *template.Template {
	t := template.Must(template.New(name).Parse(layout))
	template.Must(t.Parse(reservationBlock))
	return template.Must(t.Parse(`{{define "content"}}` + content + `{{end}}`))
}

var templates = map[string]emailTemplate{
	EventReservationCreated: {
		subject: func(m message) string { return fmt.Sprintf("Reservation received - %s", m.Reservation.Code) },
		body: mustTemplate(EventReservationCreated,
			`<p>We received your reservation. It stays pending until your payment is verified.</p>{{template "reservation" .}}`),
	},
	EventReservationConfirmed: {
		subject: func(m message) string { return fmt.Sprintf("Reservation confirmed - %s", m.Reservation.Code) },
		body: mustTemplate(EventReservationConfirmed,
			`<p>Your reservation is <strong>confirmed</strong>. We look forward to your stay.</p>{{template "reservation" .}}`),
	},
	EventReservationCancelled: {
		subject: func(m message) string { return fmt.Sprintf("Reservation cancelled - %s", m.Reservation.Code) },
		body: mustTemplate(EventReservationCancelled,
			`<p>Your reservation has been <strong>cancelled</strong>. Contact us if this was not expected.</p>{{template "reservation" .}}`),
	},
	EventVoucherReceived: {
		subject: func(m message) string { return fmt.Sprintf("Payment proof received - %s", m.Reservation.Code) },
		body: mustTemplate(EventVoucherReceived,
			`<p>We received your payment proof{{with .Voucher}} of <strong>${{.Amount}}</strong> ({{.Method}}){{end}}. Our staff will review it shortly.</p>{{template "reservation" .}}`),
	},
	EventInvoiceIssued: {
		subject: func(m message) string { return fmt.Sprintf("Invoice %s - %s", m.Invoice.Number, m.Hotel) },
		body: mustTemplate(EventInvoiceIssued,
			`{{with .Invoice}}<p>Invoice <strong>{{.Number}}</strong> has been issued.</p>
<p>Subtotal: ${{.Subtotal}}<br>Tax: ${{.Tax}}<br>Total: <strong>${{.Total}}</strong></p>
{{if .DocumentLink}}<p><a href="{{.DocumentLink}}">Download the invoice</a></p>{{end}}{{end}}`),
	},
	EventClientRegistered: {
		subject: func(m message) string { return fmt.Sprintf("Welcome to %s", m.Hotel) },
		body: mustTemplate(EventClientRegistered,
			`<p>Your account is ready. You can now book rooms and follow your reservations online.</p>`),
	},
}

// render returns subject and HTML body for ev.
func render(ev Event, hotel string) (string, string, error) {
	t, ok := templates[ev.Type]
	if !ok {
		return "", "", fmt.Errorf("no template for %q", ev.Type)
	}
	m := message{Event: ev, Hotel: hotel}
	if needsReservation(ev.Type) && ev.Reservation == nil {
		return "", "", fmt.Errorf("%s event without reservation", ev.Type)
	}
	if ev.Type == EventInvoiceIssued && ev.Invoice == nil {
		return "", "", fmt.Errorf("%s event without invoice", ev.Type)
	}
	var buf bytes.Buffer
	if err := t.body.ExecuteTemplate(&buf, "layout", m); err != nil {
		return "", "", err
	}
	return t.subject(m), buf.String(), nil
}

func needsReservation(typ string) bool {
	switch typ {
	case EventReservationCreated, EventReservationConfirmed, EventReservationCancelled, EventVoucherReceived:
		return true
	}
	return false
}
