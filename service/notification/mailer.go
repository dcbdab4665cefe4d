package notification

import (
	"fmt"
	"os"
	"strconv"

	"github.com/nmoreira/consultorio-server/cmd/models"
	"gopkg.in/gomail.v2"
)

// Mailer sends the transactional emails of the booking flow. Template
// rendering stays minimal on purpose; the marketing site owns rich
// templates.
type Mailer struct {
	host string
	port int
	user string
	pass string
	from string
}

func NewMailerFromEnv() *Mailer {
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		port = 587
	}
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = os.Getenv("SMTP_USER")
	}
	return &Mailer{
		host: os.Getenv("SMTP_HOST"),
		port: port,
		user: os.Getenv("SMTP_USER"),
		pass: os.Getenv("SMTP_PASS"),
		from: from,
	}
}

func (m *Mailer) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	d := gomail.NewDialer(m.host, m.port, m.user, m.pass)
	return d.DialAndSend(msg)
}

// SendConfirmation notifies the client that the appointment was received
// or confirmed.
func (m *Mailer) SendConfirmation(appt *models.Appointment) error {
	body := fmt.Sprintf(
		"Olá %s,\n\nSua consulta está agendada para %s às %s (%s).\n\nAté breve!",
		appt.ClientName, appt.Date.Format("02/01/2006"), appt.Time, appt.Modality,
	)
	return m.send(appt.ClientEmail, "Consulta agendada", body)
}

// SendReminder is the 24-hour reminder email.
func (m *Mailer) SendReminder(appt *models.Appointment) error {
	body := fmt.Sprintf(
		"Olá %s,\n\nLembrete: sua consulta é amanhã, %s às %s (%s).\n\nAté breve!",
		appt.ClientName, appt.Date.Format("02/01/2006"), appt.Time, appt.Modality,
	)
	return m.send(appt.ClientEmail, "Lembrete de consulta", body)
}
