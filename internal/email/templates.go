package email

import (
	"bytes"
	"html/template"
)

// Line is one order line as shown in an email. Amounts are preformatted.
type Line struct {
	Name      string
	Size      string
	Quantity  int
	UnitPrice string
	LineTotal string
}

type OrderConfirmation struct {
	OrderID  string
	Currency string
	Total    string
	Lines    []Line
}

type OrderCancellation struct {
	OrderID       string
	Currency      string
	Total         string
	RefundID      string
	RefundPending bool
}

const layout = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #1f4e79; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">{{template "title" .}}</h1>
	</div>
	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 0 0 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">{{.OrderID}}</p>
		</div>
		{{template "content" .}}
	</div>
</body>
</html>{{end}}`

var confirmationTmpl = template.Must(template.Must(template.New("confirmation").Parse(layout)).Parse(`
{{define "title"}}Thank you for your order{{end}}
{{define "content"}}
		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left;">Item</th>
					<th style="padding: 12px; text-align: center;">Qty</th>
					<th style="padding: 12px; text-align: right;">Price</th>
					<th style="padding: 12px; text-align: right;">Subtotal</th>
				</tr>
			</thead>
			<tbody>
			{{- range .Lines}}
				<tr>
					<td style="padding: 12px; border-bottom: 1px solid #eee;">{{.Name}}{{if .Size}} ({{.Size}}){{end}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">{{.Quantity}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{.UnitPrice}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{.LineTotal}}</td>
				</tr>
			{{- end}}
			</tbody>
		</table>
		<p style="text-align: right; font-size: 18px; font-weight: bold;">Total: {{.Currency}} {{.Total}}</p>
{{end}}`))

var cancellationTmpl = template.Must(template.Must(template.New("cancellation").Parse(layout)).Parse(`
{{define "title"}}Your order was cancelled{{end}}
{{define "content"}}
		<p style="margin-top: 0;">Your order has been cancelled and the items returned to stock.</p>
		{{- if .RefundPending}}
		<p>A refund of {{.Currency}} {{.Total}} is being processed. You will receive it once the payment provider confirms.</p>
		{{- else}}
		<p>A refund of {{.Currency}} {{.Total}} has been issued (reference <span style="font-family: monospace;">{{.RefundID}}</span>).</p>
		{{- end}}
{{end}}`))

func BuildOrderConfirmationBody(data OrderConfirmation) (string, error) {
	return render(confirmationTmpl, data)
}

func BuildOrderCancellationBody(data OrderCancellation) (string, error) {
	return render(cancellationTmpl, data)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
