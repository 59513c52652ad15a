// Package receipt renders payment receipts as standalone HTML documents.
package receipt

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/paulebil/UniHostel/internal/entity"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ContentType of rendered documents
const ContentType = "text/html; charset=utf-8"

// Extension of rendered documents
const Extension = ".html"

//go:embed templates/receipt.html
var templateFS embed.FS

// Context is everything printed on a receipt.
type Context struct {
	Number   string
	IssuedAt time.Time
	Issuer   string

	HostelName     string
	HostelLocation string
	RoomNumber     string
	BookingID      int64
	BookingStatus  entity.BookingStatus

	Guest entity.Guest

	RoomPrice     entity.Money
	AmountPaid    entity.Money
	Currency      string
	PaymentMethod string
	TransactionID string
}

// PercentBasisPoints is the paid share of the room price in 1/100 of a percent.
func (c Context) PercentBasisPoints() int64 {
	if c.RoomPrice <= 0 {
		return 0
	}
	return int64(c.AmountPaid) * 10000 / int64(c.RoomPrice)
}

// Balance is what remains to be paid, never negative.
func (c Context) Balance() entity.Money {
	if c.AmountPaid >= c.RoomPrice {
		return 0
	}
	return c.RoomPrice - c.AmountPaid
}

// view is the flattened, preformatted data handed to the template
type view struct {
	Number         string
	IssuedAt       string
	Issuer         string
	HostelName     string
	HostelLocation string
	RoomNumber     string
	BookingID      int64
	BookingStatus  string
	StudentName    string
	StudentEmail   string
	StudentPhone   string
	University     string
	RoomPrice      string
	AmountPaid     string
	PercentPaid    string
	Balance        string
	PaymentMethod  string
	TransactionID  string
}

type Renderer struct {
	tmpl    *template.Template
	printer *message.Printer
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/receipt.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse receipt template: %w", err)
	}
	return &Renderer{
		tmpl:    tmpl,
		printer: message.NewPrinter(language.English),
	}, nil
}

// Render produces the full document or an error; never a partial one.
func (r *Renderer) Render(c Context) ([]byte, error) {
	if err := validate(c); err != nil {
		return nil, err
	}

	v := view{
		Number:         c.Number,
		IssuedAt:       c.IssuedAt.UTC().Format("02 Jan 2006 15:04 MST"),
		Issuer:         c.Issuer,
		HostelName:     c.HostelName,
		HostelLocation: c.HostelLocation,
		RoomNumber:     c.RoomNumber,
		BookingID:      c.BookingID,
		BookingStatus:  string(c.BookingStatus),
		StudentName:    c.Guest.FullName(),
		StudentEmail:   c.Guest.Email,
		StudentPhone:   c.Guest.Phone,
		University:     c.Guest.University,
		RoomPrice:      r.FormatMoney(c.Currency, c.RoomPrice),
		AmountPaid:     r.FormatMoney(c.Currency, c.AmountPaid),
		PercentPaid:    formatBasisPoints(c.PercentBasisPoints()),
		Balance:        r.FormatMoney(c.Currency, c.Balance()),
		PaymentMethod:  c.PaymentMethod,
		TransactionID:  c.TransactionID,
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("failed to execute receipt template: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatMoney prints "UGX 150,000.00"
func (r *Renderer) FormatMoney(currency string, m entity.Money) string {
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	amount := r.printer.Sprintf("%d", m.Major()) + fmt.Sprintf(".%02d", m.Minor())
	if currency == "" {
		return sign + amount
	}
	return currency + " " + sign + amount
}

func formatBasisPoints(bp int64) string {
	return strconv.FormatInt(bp/100, 10) + "." + fmt.Sprintf("%02d", bp%100) + "%"
}

func validate(c Context) error {
	missing := []string{}
	if strings.TrimSpace(c.Number) == "" {
		missing = append(missing, "receipt number")
	}
	if c.IssuedAt.IsZero() {
		missing = append(missing, "issue time")
	}
	if strings.TrimSpace(c.HostelName) == "" {
		missing = append(missing, "hostel name")
	}
	if strings.TrimSpace(c.RoomNumber) == "" {
		missing = append(missing, "room number")
	}
	if strings.TrimSpace(c.TransactionID) == "" {
		missing = append(missing, "transaction id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("receipt context incomplete: missing %s", strings.Join(missing, ", "))
	}
	if c.AmountPaid < 0 || c.RoomPrice < 0 {
		return fmt.Errorf("receipt context has negative amounts")
	}
	return nil
}
