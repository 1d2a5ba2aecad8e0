package telegram

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

// updateUserID is the conversation key. Private chats only, so the chat id
// doubles as the user id.
func updateUserID(u tgbotapi.Update) string {
	switch {
	case u.CallbackQuery != nil:
		if m := u.CallbackQuery.Message; m != nil && m.Chat != nil {
			return strconv.FormatInt(m.Chat.ID, 10)
		}
		if u.CallbackQuery.From != nil {
			return strconv.FormatInt(u.CallbackQuery.From.ID, 10)
		}
		return ""
	case u.Message != nil && u.Message.Chat != nil:
		return strconv.FormatInt(u.Message.Chat.ID, 10)
	default:
		return ""
	}
}

// isCancel reports whether the update asks to abort the current workflow.
func isCancel(u tgbotapi.Update) bool {
	if u.CallbackQuery != nil {
		return u.CallbackQuery.Data == "cancel_op"
	}
	if u.Message != nil {
		name, _ := parseCommand(u.Message.Text)
		return name == "cancel"
	}
	return false
}

// fileRef points at the attachment that has to be downloaded before the
// update becomes an event.
type fileRef struct {
	FileID   string
	Name     string
	MIMEType string
	Size     int64
	Photo    bool
}

// attachment returns the largest photo or the document of a message.
func attachment(m *tgbotapi.Message) (fileRef, bool) {
	if len(m.Photo) > 0 {
		best := m.Photo[0]
		for _, p := range m.Photo[1:] {
			if p.Width*p.Height > best.Width*best.Height {
				best = p
			}
		}
		return fileRef{FileID: best.FileID, Name: "photo.jpg", MIMEType: "image/jpeg", Size: int64(best.FileSize), Photo: true}, true
	}
	if m.Document != nil {
		return fileRef{
			FileID:   m.Document.FileID,
			Name:     m.Document.FileName,
			MIMEType: m.Document.MimeType,
			Size:     int64(m.Document.FileSize),
		}, true
	}
	return fileRef{}, false
}

// textEvent converts the non-file parts of an update.
func textEvent(u tgbotapi.Update) (domain.Event, bool) {
	switch {
	case u.CallbackQuery != nil:
		return domain.ButtonPressed{Token: u.CallbackQuery.Data}, true
	case u.Message != nil && u.Message.Text != "":
		if name, args := parseCommand(u.Message.Text); name != "" {
			return domain.CommandReceived{Name: name, Args: args}, true
		}
		return domain.TextReceived{Text: u.Message.Text}, true
	default:
		return nil, false
	}
}

// parseCommand splits "/cmd@BotName args" into its parts.
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	head, args, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(args)
}
