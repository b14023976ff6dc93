// Package pages serves what a registered subdomain shows: a redirect, a
// link-in-bio profile, its contact card and a share QR code. It also renders
// the landing and post-checkout pages on the root domain.
package pages

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/rax0nrax/punyfunny/api_registry/internal/records"
	"github.com/rax0nrax/punyfunny/api_registry/internal/vcard"
	"github.com/rax0nrax/punyfunny/pkg/idn"
	"github.com/rax0nrax/punyfunny/pkg/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const qrSize = 256

// Outcome labels for the page view counter.
const (
	ViewBio      = "bio"
	ViewRedirect = "redirect"
	ViewNotFound = "not_found"
	ViewBadLabel = "bad_label"
	ViewError    = "error"
)

type Config struct {
	Resolver *Resolver
	Zone     idn.Zone
	// PublicURL is the root site, e.g. "https://xn--wb8d.ws".
	PublicURL        string
	TurnstileSiteKey string
	Logger           logging.Logger
	// Views counts page renders by outcome. Optional.
	Views *prometheus.CounterVec
}

type Handler struct {
	resolver         *Resolver
	zone             idn.Zone
	publicURL        string
	turnstileSiteKey string
	logger           logging.Logger
	views            *prometheus.CounterVec
}

func NewHandler(cfg Config) *Handler {
	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		publicURL = "https://" + cfg.Zone.Wire()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
		cfg.Logger.SetOutput(io.Discard)
	}
	return &Handler{
		resolver:         cfg.Resolver,
		zone:             cfg.Zone,
		publicURL:        publicURL,
		turnstileSiteKey: cfg.TurnstileSiteKey,
		logger:           cfg.Logger,
		views:            cfg.Views,
	}
}

// Register mounts the page routes.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", h.Landing)
	r.GET("/dashboard", h.Dashboard)
	r.GET("/p/:label", h.Profile)
	r.GET("/p/:label/contact.vcf", h.Contact)
	r.GET("/p/:label/qr.png", h.QRCode)
}

func (h *Handler) count(outcome string) {
	if h.views != nil {
		h.views.WithLabelValues(outcome).Inc()
	}
}

type social struct {
	Name string
	URL  string
}

type profileView struct {
	Zone        string
	Domain      idn.Domain
	Bio         *records.Bio
	DisplayName string
	Initial     string
	ThemeClass  string
	HasContact  bool
	PhoneURL    template.URL
	Socials     []social
	ShareURL    string
	ContactPath string
	QRPath      string
}

type availableView struct {
	Zone        string
	Domain      string
	Admissible  bool
	RegisterURL string
	HomeURL     string
}

type landingView struct {
	Zone             string
	Query            string
	Canceled         bool
	TurnstileSiteKey string
}

type dashboardView struct {
	Zone    string
	Domain  *idn.Domain
	Success bool
	PageURL string
}

// Profile redirects REDIRECT records and renders BIO records.
func (h *Handler) Profile(c *gin.Context) {
	label, rec, ok := h.resolve(c)
	if !ok {
		return
	}

	if rec.Kind == records.KindRedirect {
		h.count(ViewRedirect)
		c.Redirect(http.StatusFound, rec.TargetURL)
		return
	}
	if rec.Bio == nil {
		h.count(ViewError)
		h.render(c, http.StatusNotFound, "available.html", h.availableView(label))
		return
	}

	domain, err := h.zone.FullyQualify(label)
	if err != nil {
		h.count(ViewError)
		c.String(http.StatusBadRequest, "invalid subdomain")
		return
	}

	h.count(ViewBio)
	h.render(c, http.StatusOK, "profile.html", h.profileView(domain, rec.Bio))
}

// Contact serves the BIO record's business card as a vCard download.
func (h *Handler) Contact(c *gin.Context) {
	_, rec, ok := h.resolve(c)
	if !ok {
		return
	}
	if rec.Kind != records.KindBio || rec.Bio == nil {
		c.String(http.StatusNotFound, "no contact card")
		return
	}

	card, err := vcard.Generate(rec.Bio)
	if err != nil {
		h.logger.WithError(err).WithField("label", rec.Subdomain).Error("Failed to generate vCard")
		c.String(http.StatusInternalServerError, "failed to generate contact card")
		return
	}
	c.Header("Content-Disposition", contentDisposition(vcard.Filename(rec.Bio)))
	c.Data(http.StatusOK, vcard.ContentType, []byte(card))
}

// QRCode renders a PNG pointing at the subdomain. It does not need a record.
func (h *Handler) QRCode(c *gin.Context) {
	label, err := Label(c.Param("label"))
	if err != nil {
		c.String(http.StatusBadRequest, "invalid subdomain")
		return
	}
	domain, err := h.zone.FullyQualify(label)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid subdomain")
		return
	}

	png, err := qrcode.Encode("https://"+domain.Display, qrcode.Medium, qrSize)
	if err != nil {
		h.logger.WithError(err).WithField("domain", domain.Wire).Error("Failed to render QR code")
		c.String(http.StatusInternalServerError, "failed to render QR code")
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}

// Landing serves the search page.
func (h *Handler) Landing(c *gin.Context) {
	h.render(c, http.StatusOK, "landing.html", landingView{
		Zone:             h.zone.Display(),
		Query:            c.Query("subdomain"),
		Canceled:         c.Query("canceled") == "true",
		TurnstileSiteKey: h.turnstileSiteKey,
	})
}

// Dashboard is where checkout success lands.
func (h *Handler) Dashboard(c *gin.Context) {
	view := dashboardView{Zone: h.zone.Display(), Success: c.Query("success") == "true"}
	if raw := c.Query("subdomain"); raw != "" {
		if label, err := Label(raw); err == nil {
			if d, err := h.zone.FullyQualify(label); err == nil {
				view.Domain = &d
				view.PageURL = "https://" + d.Wire
			}
		}
	}
	h.render(c, http.StatusOK, "dashboard.html", view)
}

// resolve writes the error response itself and reports whether a record was
// found.
func (h *Handler) resolve(c *gin.Context) (string, *records.Record, bool) {
	label, rec, err := h.resolver.Resolve(c.Request.Context(), c.Param("label"))
	switch {
	case err == nil:
		return label, rec, true
	case errors.Is(err, ErrBadLabel):
		h.count(ViewBadLabel)
		c.String(http.StatusBadRequest, "invalid subdomain")
	case errors.Is(err, records.ErrNotFound):
		h.count(ViewNotFound)
		h.render(c, http.StatusNotFound, "available.html", h.availableView(label))
	default:
		h.count(ViewError)
		h.logger.WithError(err).WithField("label", label).Error("Failed to resolve subdomain")
		c.String(http.StatusInternalServerError, "failed to load subdomain")
	}
	return "", nil, false
}

func (h *Handler) availableView(label string) availableView {
	view := availableView{
		Zone:    h.zone.Display(),
		Domain:  label + "." + h.zone.Display(),
		HomeURL: h.publicURL + "/",
	}
	if idn.IsAdmissible(label) {
		if _, err := idn.Encode(label); err == nil {
			view.Admissible = true
			view.RegisterURL = h.publicURL + "/?subdomain=" + url.QueryEscape(label)
		}
	}
	return view
}

var themeClasses = map[records.Theme]string{
	records.ThemeDark:     "theme-dark",
	records.ThemeLight:    "theme-light",
	records.ThemeColorful: "theme-colorful",
}

func (h *Handler) profileView(d idn.Domain, bio *records.Bio) profileView {
	name := bio.Name
	if name == "" {
		name = bio.Title
	}
	theme, ok := themeClasses[bio.Theme]
	if !ok {
		theme = themeClasses[records.ThemeDark]
	}
	initial := d.Label
	if r, size := utf8.DecodeRuneInString(d.Label); r != utf8.RuneError {
		initial = d.Label[:size]
	}

	socials := make([]social, 0, len(bio.Socials))
	for platform, link := range bio.Socials {
		socials = append(socials, social{Name: platform, URL: link})
	}
	sort.Slice(socials, func(i, j int) bool { return socials[i].Name < socials[j].Name })

	base := "/p/" + url.PathEscape(d.Label)
	view := profileView{
		Zone:        h.zone.Display(),
		Domain:      d,
		Bio:         bio,
		DisplayName: name,
		Initial:     initial,
		ThemeClass:  theme,
		HasContact:  bio.HasContact(),
		Socials:     socials,
		ShareURL:    "https://" + d.Wire,
		ContactPath: base + "/contact.vcf",
		QRPath:      base + "/qr.png",
	}
	if bio.Phone != "" {
		view.PhoneURL = template.URL("tel:" + url.PathEscape(bio.Phone))
	}
	return view
}

func (h *Handler) render(c *gin.Context, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.WithError(err).WithField("template", name).Error("Failed to render page")
		c.String(http.StatusInternalServerError, "failed to render page")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// contentDisposition quotes ASCII names and adds an RFC 5987 form for the rest.
func contentDisposition(filename string) string {
	ascii := strings.Map(func(r rune) rune {
		if r > 0x7e || r < 0x20 {
			return '_'
		}
		return r
	}, filename)
	return `attachment; filename="` + ascii + `"; filename*=UTF-8''` + url.PathEscape(filename)
}
