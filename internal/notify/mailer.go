// Package notify emails room credentials to team captains.
package notify

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/ascendancy-esports/tournament-backend/internal/registry"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const roomSubject = "New Game Room Created - Ascendancy Tournament"

var roomTemplate = template.Must(template.New("room").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333; line-height: 1.6;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #FF4655; margin-bottom: 20px;">New Game Room Created</h2>
    <p>Hello {{.TeamName}} Captain,</p>
    <p>A new game room has been created for your upcoming match.</p>
    <div style="background: #f5f5f5; padding: 20px; border-radius: 5px; margin: 20px 0;">
      <h3 style="margin-top: 0;">Room Details:</h3>
      <p style="margin-bottom: 10px;"><strong>Room Code:</strong> {{.RoomCode}}</p>
      <p style="margin-bottom: 10px;"><strong>Room Passkey:</strong> {{.RoomPasskey}}</p>
    </div>
    <p>Please join the room using these credentials before the match starts.</p>
    <p style="margin-top: 20px;">You can join the room at: <a href="https://ascendancy-esports.me/rooms" style="color: #FF4655;">https://ascendancy-esports.me/rooms</a></p>
    <p style="color: #666; font-size: 14px; margin-top: 30px;">
      Best regards,<br>
      Ascendancy Tournament Team
    </p>
  </div>
</body>
</html>`))

type Mailer struct {
	client *mail.Client
	from   string
	log    *zap.Logger
}

func NewMailer(host string, port int, username, password, from string, log *zap.Logger) (*Mailer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(username),
		mail.WithPassword(password),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &Mailer{client: client, from: from, log: log}, nil
}

// RoomCreated implements registry.Notifier: one credential email per captain,
// both in a single SMTP dial.
func (m *Mailer) RoomCreated(ctx context.Context, n registry.RoomNotification) error {
	msg1, err := m.compose(n, n.Team1Name, n.Team1Email)
	if err != nil {
		return err
	}
	msg2, err := m.compose(n, n.Team2Name, n.Team2Email)
	if err != nil {
		return err
	}

	if err := m.client.DialAndSendWithContext(ctx, msg1, msg2); err != nil {
		return fmt.Errorf("send room notification: %w", err)
	}
	m.log.Info("room credentials mailed",
		zap.String("roomCode", n.RoomCode),
		zap.Strings("teams", []string{n.Team1Name, n.Team2Name}))
	return nil
}

func (m *Mailer) compose(n registry.RoomNotification, teamName, to string) (*mail.Msg, error) {
	var body strings.Builder
	err := roomTemplate.Execute(&body, struct {
		TeamName    string
		RoomCode    string
		RoomPasskey string
	}{teamName, n.RoomCode, n.RoomPasskey})
	if err != nil {
		return nil, fmt.Errorf("render room email: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, err
	}
	if err := msg.To(to); err != nil {
		return nil, err
	}
	msg.Subject(roomSubject)
	msg.SetBodyString(mail.TypeTextHTML, body.String())
	return msg, nil
}
