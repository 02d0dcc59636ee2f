package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// User is a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// Chat is the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Message is an incoming or sent message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

// Update is one entry returned by getUpdates.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// ChatID returns the chat of the update's message, if any.
func (u Update) ChatID() (int64, bool) {
	if u.Message == nil || u.Message.Chat == nil {
		return 0, false
	}
	return u.Message.Chat.ID, true
}

// Text returns the message text, or "" when the update carries none.
func (u Update) Text() string {
	if u.Message == nil {
		return ""
	}
	return u.Message.Text
}

func fromAPIUser(u *tgbotapi.User) *User {
	if u == nil {
		return nil
	}
	return &User{ID: u.ID, IsBot: u.IsBot, FirstName: u.FirstName, Username: u.UserName}
}

func fromAPIUpdate(u tgbotapi.Update) Update {
	out := Update{UpdateID: int64(u.UpdateID)}
	if m := u.Message; m != nil {
		out.Message = &Message{
			MessageID: int64(m.MessageID),
			From:      fromAPIUser(m.From),
			Date:      int64(m.Date),
			Text:      m.Text,
		}
		if m.Chat != nil {
			out.Message.Chat = &Chat{ID: m.Chat.ID, Type: m.Chat.Type}
		}
	}
	return out
}
