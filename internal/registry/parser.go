package registry

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parser extracts practitioner records from register detail pages. The page
// lays fields out as labeled rows inside the practitioner-details panel.
type Parser struct{}

// NewParser returns a detail page parser.
func NewParser() *Parser {
	return &Parser{}
}

// fieldSetters maps the register's row labels onto Record fields.
var fieldSetters = map[string]func(*Record, string){
	"registration number":         func(r *Record, v string) { r.RegID = v },
	"profession":                  func(r *Record, v string) { r.Profession = v },
	"division":                    func(r *Record, v string) { r.Division = v },
	"registration type":           func(r *Record, v string) { r.RegistrationType = v },
	"registration status":         func(r *Record, v string) { r.RegistrationStatus = v },
	"first registered":            func(r *Record, v string) { r.FirstRegistered = v },
	"registration expiry":         func(r *Record, v string) { r.ExpiryDate = v },
	"conditions":                  func(r *Record, v string) { r.Conditions = v },
	"endorsements":                func(r *Record, v string) { r.Endorsements = v },
	"qualifications":              func(r *Record, v string) { r.Qualifications = v },
	"languages":                   func(r *Record, v string) { r.Languages = v },
	"sex":                         func(r *Record, v string) { r.Gender = v },
	"principal place":             func(r *Record, v string) { r.setLocation(v) },
	"principal place of practice": func(r *Record, v string) { r.setLocation(v) },
}

// Parse pulls a Record out of a detail page. Block pages surface ErrBlocked
// before any parsing; records with fewer than MinPopulatedFields populated
// fields surface ErrIncomplete.
func (p *Parser) Parse(html []byte) (*Record, error) {
	if IsBlockedBody(html) {
		return nil, ErrBlocked
	}
	if !looksLikeHTML(html) {
		return nil, fmt.Errorf("detail page is not HTML")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}

	rec := &Record{}
	rec.Name = cleanText(doc.Find(".practitioner-details h1, h1.practitioner-name").First().Text())

	doc.Find(".practitioner-details .field-row, table.practitioner-details tr").Each(func(_ int, row *goquery.Selection) {
		label := cleanText(row.Find(".field-label, th").First().Text())
		value := cleanText(row.Find(".field-value, td").First().Text())
		if label == "" || value == "" {
			return
		}
		key := strings.ToLower(strings.TrimSuffix(label, ":"))
		if set, ok := fieldSetters[key]; ok {
			set(rec, value)
		}
	})

	if rec.PopulatedFields() < MinPopulatedFields {
		return nil, ErrIncomplete
	}
	return rec, nil
}

// setLocation splits a "Suburb STATE 3000" place string into its parts.
// Partial strings keep whatever parsed.
func (r *Record) setLocation(place string) {
	parts := strings.Fields(place)
	if len(parts) == 0 {
		return
	}
	// Trailing 4-digit postcode, then state abbreviation, rest is suburb.
	if last := parts[len(parts)-1]; len(last) == 4 && isDigits(last) {
		r.Postcode = last
		parts = parts[:len(parts)-1]
	}
	if len(parts) > 0 {
		if last := parts[len(parts)-1]; last == strings.ToUpper(last) && len(last) <= 3 {
			r.State = last
			parts = parts[:len(parts)-1]
		}
	}
	r.Suburb = strings.Join(parts, " ")
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
