package email

import (
	"fmt"
	"mime"
	"net/smtp"
)

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
	send sendFunc
}

func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
		send: smtp.SendMail,
	}
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(to string, data OrderConfirmation) error {
	body, err := BuildOrderConfirmationBody(data)
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}
	return s.deliver(to, fmt.Sprintf("Order confirmed (order %s)", data.OrderID), body)
}

func (s *Service) SendOrderCancellation(to string, data OrderCancellation) error {
	body, err := BuildOrderCancellationBody(data)
	if err != nil {
		return fmt.Errorf("render cancellation: %w", err)
	}
	return s.deliver(to, fmt.Sprintf("Order cancelled (order %s)", data.OrderID), body)
}

func (s *Service) deliver(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, mime.QEncoding.Encode("utf-8", subject), body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.send(addr, nil, s.from, []string{to}, []byte(msg))
}
