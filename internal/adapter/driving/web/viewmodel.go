package web

import (
	"html/template"
	"strings"
	"time"

	"github.com/ericfisherdev/firechat/internal/domain/model"
)

// View names select which part of the page is rendered.
const (
	viewLoading = "loading"
	viewLogin   = "login"
	viewChat    = "chat"
)

// PageViewModel is everything the page template renders.
type PageViewModel struct {
	Title     string
	View      string
	CSRFToken string
	Email     string
	Offline   bool
	Uploading bool
	Notice    *NoticeViewModel
	Messages  []MessageViewModel
}

// NoticeViewModel is an alert shown above the form.
type NoticeViewModel struct {
	Title   string
	Message string
}

// MessageViewModel is one rendered message bubble.
type MessageViewModel struct {
	ID       string
	User     string
	Mine     bool
	TextHTML template.HTML
	ImageURI template.URL
	Time     string
}

func toNoticeViewModel(title, message string) *NoticeViewModel {
	return &NoticeViewModel{Title: title, Message: message}
}

func toMessageViewModels(msgs []model.Message, me string) []MessageViewModel {
	out := make([]MessageViewModel, 0, len(msgs))
	for _, m := range msgs {
		vm := MessageViewModel{
			ID:       m.ID,
			User:     m.User,
			Mine:     m.User == me,
			TextHTML: RenderMessageText(m.Text),
		}
		if m.HasImage() {
			vm.ImageURI = imageURI(*m.ImageBase64)
		}
		if m.CreatedAt != nil {
			vm.Time = m.CreatedAt.Time().Local().Format(time.Kitchen)
		}
		out = append(out, vm)
	}
	return out
}

// imageURI trusts only inline image data URIs; anything else renders no
// image.
func imageURI(uri string) template.URL {
	if !strings.HasPrefix(uri, "data:image/") || !strings.Contains(uri, ";base64,") {
		return ""
	}
	return template.URL(uri)
}
