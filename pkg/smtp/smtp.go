package smtp

import (
	"fmt"
	smtpPkg "net/smtp"
	"os"
)

type ItfSmtp interface {
	SendRiskAlert(wasteType string, riskLevel string, confidence float64, imageRef string) error
}

type smtp struct {
	auth     smtpPkg.Auth
	mail     string
	alertTo  string
	hostPort string
	host     string
}

func New() ItfSmtp {
	mail := os.Getenv("SMTP_MAIL")
	password := os.Getenv("SMTP_PASSWORD")
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		host = "smtp.gmail.com"
	}
	auth := smtpPkg.PlainAuth("", mail, password, host)

	return &smtp{
		auth:     auth,
		mail:     mail,
		alertTo:  os.Getenv("ALERT_MAIL_TO"),
		host:     host,
		hostPort: host + ":587",
	}
}

// SendRiskAlert mails the configured operator address about a high-risk
// detection. A missing ALERT_MAIL_TO disables alerting.
func (s *smtp) SendRiskAlert(wasteType string, riskLevel string, confidence float64, imageRef string) error {
	if s.alertTo == "" {
		return nil
	}

	to := []string{s.alertTo}

	message := []byte(fmt.Sprintf(
		"To: %s\r\nSubject: %s risk waste detected\r\n\r\nDetected %s waste (risk %s, confidence %.2f%%).\r\nImage: %s\r\n",
		s.alertTo, riskLevel, wasteType, riskLevel, confidence, imageRef))

	return smtpPkg.SendMail(s.hostPort, s.auth, s.mail, to, message)
}
