package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Company is the issuer block printed on every invoice.
// It is read once at startup and passed by value afterwards.
type Company struct {
	Name           string   `yaml:"name"`
	Tagline        string   `yaml:"tagline"`
	Address        []string `yaml:"address"`
	Email          string   `yaml:"email"`
	Phone          string   `yaml:"phone"`
	Website        string   `yaml:"website"`
	TaxID          string   `yaml:"tax_id"`
	CurrencySymbol string   `yaml:"currency_symbol"`
	FooterNote     string   `yaml:"footer_note"`
}

// DefaultCompany is used when no company file is present.
func DefaultCompany() Company {
	return Company{
		Name:           "NexusBilling Inc.",
		Tagline:        "Enterprise Billing Suite",
		Address:        []string{"123 Business Rd, Suite 100", "Tech City, TC 90210"},
		Email:          "billing@nexusbilling.com",
		Phone:          "+1 (555) 123-4567",
		CurrencySymbol: "$",
		FooterNote:     "Thank you for your business!",
	}
}

// LoadCompany reads the company profile from a YAML file. A missing file
// yields DefaultCompany; fields left empty in the file keep their defaults.
func LoadCompany(path string) (Company, error) {
	c := DefaultCompany()
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("read company file: %w", err)
	}
	return ParseCompany(raw)
}

// ParseCompany decodes a YAML company profile over the defaults.
func ParseCompany(raw []byte) (Company, error) {
	c := DefaultCompany()
	var file Company
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return c, fmt.Errorf("parse company file: %w", err)
	}
	overlay(&c.Name, file.Name)
	overlay(&c.Tagline, file.Tagline)
	overlay(&c.Email, file.Email)
	overlay(&c.Phone, file.Phone)
	overlay(&c.Website, file.Website)
	overlay(&c.TaxID, file.TaxID)
	overlay(&c.CurrencySymbol, file.CurrencySymbol)
	overlay(&c.FooterNote, file.FooterNote)
	if len(file.Address) > 0 {
		c.Address = file.Address
	}
	return c, nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
