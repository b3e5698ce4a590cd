package telegram

// Wire types for the subset of the Bot API this service consumes. Only the
// fields the webhook path reads are declared.

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID  int64       `json:"message_id"`
	From       *User       `json:"from"`
	Chat       Chat        `json:"chat"`
	Text       string      `json:"text"`
	WebAppData *WebAppData `json:"web_app_data"`
}

type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
}

// DisplayName joins the sender's first and last name.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type Chat struct {
	ID int64 `json:"id"`
}

// WebAppData is the payload a Mini App hands back through the chat.
type WebAppData struct {
	Data       string `json:"data"`
	ButtonText string `json:"button_text"`
}
