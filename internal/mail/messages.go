package mail

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"github.com/valyala/bytebufferpool"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	engine     *html.Engine
	globalVars fiber.Map
)

// NewTemplateEngine loads mail templates from dir, or from the embedded
// templates when dir is empty.
func NewTemplateEngine(dir string) *html.Engine {
	if dir != "" {
		return html.NewFileSystem(http.Dir(dir), ".html")
	}
	sub, _ := fs.Sub(templateFS, "templates")
	return html.NewFileSystem(http.FS(sub), ".html")
}

func Initialize(htmlEngine *html.Engine, vars fiber.Map) {
	engine = htmlEngine
	globalVars = vars
}

func render(name string, vars fiber.Map) (string, error) {
	if engine == nil {
		engine = NewTemplateEngine("")
	}
	binding := fiber.Map{}
	for k, v := range globalVars {
		binding[k] = v
	}
	for k, v := range vars {
		binding[k] = v
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := engine.Render(buf, name, binding); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func SendTwoFactorEnabled(sender MailSender, toEmail, username string, at time.Time) error {
	body, err := render("2fa-enabled", fiber.Map{
		"username": username,
		"time":     at.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return err
	}
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: "Two-factor authentication enabled",
		Body:    body,
		IsHTML:  true,
	})
}

func SendTwoFactorDisabled(sender MailSender, toEmail, username string, at time.Time) error {
	body, err := render("2fa-disabled", fiber.Map{
		"username": username,
		"time":     at.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return err
	}
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: "Two-factor authentication disabled",
		Body:    body,
		IsHTML:  true,
	})
}

// SendAsync runs send in the background and logs its failure.
func SendAsync(kind string, send func() error) {
	go func() {
		if err := send(); err != nil {
			slog.Error("Could not send mail", "kind", kind, "error", err)
		}
	}()
}
