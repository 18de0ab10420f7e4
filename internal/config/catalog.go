package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/orderbridge/internal/invoice/format"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Catalog holds the business constants used when building CRM records.
type Catalog struct {
	Account  AccountDefaults `mapstructure:"account"`
	Project  ProjectDefaults `mapstructure:"project"`
	Task     TaskDefaults    `mapstructure:"task"`
	Invoice  InvoiceDefaults `mapstructure:"invoice"`
	Packages []PricePackage  `mapstructure:"packages"`
}

type AccountDefaults struct {
	Type int `mapstructure:"type"`
}

type ProjectDefaults struct {
	Name              string  `mapstructure:"name"`
	TypeID            int     `mapstructure:"typeId"`
	StageID           int     `mapstructure:"stageId"`
	ManagerID         int     `mapstructure:"managerId"`
	EstimatedRevenue  float64 `mapstructure:"estimatedRevenue"`
	EstimatedExpenses float64 `mapstructure:"estimatedExpenses"`
}

type TaskDefaults struct {
	Name string `mapstructure:"name"`
}

type InvoiceDefaults struct {
	Prefix          string `mapstructure:"prefix"`
	PrintedTemplate string `mapstructure:"printedTemplate"`
	StatusID        int    `mapstructure:"statusId"`
	TemplateID      int    `mapstructure:"templateId"`
	OrganizationID  int    `mapstructure:"organizationId"`
	CurrencyID      int    `mapstructure:"currencyId"`
	Currency        string `mapstructure:"currency"`
}

// PricePackage maps an exact order total to the description used on the
// CRM project and task.
type PricePackage struct {
	Total       float64 `mapstructure:"total"`
	Description string  `mapstructure:"description"`
}

func DefaultCatalog() Catalog {
	return Catalog{
		Account: AccountDefaults{Type: 2},
		Project: ProjectDefaults{
			Name:              "New Order",
			TypeID:            3,
			StageID:           1,
			ManagerID:         1,
			EstimatedRevenue:  999,
			EstimatedExpenses: 0,
		},
		Task: TaskDefaults{Name: "New Order Online"},
		Invoice: InvoiceDefaults{
			Prefix:          "KDG",
			PrintedTemplate: "{PREFIX}{SEQ}",
			StatusID:        1,
			TemplateID:      1,
			OrganizationID:  1,
			CurrencyID:      1,
			Currency:        "GBP",
		},
		Packages: []PricePackage{
			{Total: 465, Description: "Lite Hosting £15 / Website Development £450"},
			{Total: 519, Description: "Business Hosting £69 / Website Development £450"},
		},
	}
}

// Describe returns the package description whose total matches exactly, or
// an empty string.
func (c Catalog) Describe(total decimal.Decimal) string {
	for _, pkg := range c.Packages {
		if decimal.NewFromFloat(pkg.Total).Equal(total) {
			return pkg.Description
		}
	}
	return ""
}

type CatalogHolder struct {
	current atomic.Value // holds Catalog
}

// NewStaticCatalogHolder returns a holder that never reloads.
func NewStaticCatalogHolder(c Catalog) *CatalogHolder {
	holder := &CatalogHolder{}
	holder.current.Store(c)
	return holder
}

func NewCatalogHolder(cfg Config, log *zap.Logger) (*CatalogHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("catalog")

	v := viper.New()
	if cfg.CatalogPath != "" {
		v.SetConfigFile(cfg.CatalogPath)
	} else {
		v.SetConfigName("catalog")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/orderbridge")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ORDERBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Info("catalog file not found, using defaults")
		return NewStaticCatalogHolder(DefaultCatalog()), nil
	}

	current, err := decodeCatalog(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticCatalogHolder(current)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeCatalog(v)
		if err != nil {
			log.Warn("catalog reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.Replace(updated)
		log.Info("catalog reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *CatalogHolder) Get() Catalog {
	return h.current.Load().(Catalog)
}

// Replace swaps in c for every later Get.
func (h *CatalogHolder) Replace(c Catalog) {
	h.current.Store(c)
}

func decodeCatalog(v *viper.Viper) (Catalog, error) {
	catalog := DefaultCatalog()
	if v.IsSet("catalog") {
		if v.IsSet("catalog.packages") {
			catalog.Packages = nil
		}
		if err := v.UnmarshalKey("catalog", &catalog); err != nil {
			return Catalog{}, err
		}
	}
	if err := validateCatalog(catalog); err != nil {
		return Catalog{}, err
	}
	return catalog, nil
}

func validateCatalog(c Catalog) error {
	if strings.TrimSpace(c.Invoice.Prefix) == "" {
		return errors.New("catalog.invoice.prefix cannot be empty")
	}
	if err := validatePrintedTemplate(c.Invoice); err != nil {
		return err
	}
	if strings.TrimSpace(c.Project.Name) == "" {
		return errors.New("catalog.project.name cannot be empty")
	}
	seen := make(map[string]struct{}, len(c.Packages))
	for _, pkg := range c.Packages {
		key := decimal.NewFromFloat(pkg.Total).String()
		if _, ok := seen[key]; ok {
			return errors.New("catalog.packages has duplicate total " + key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// validatePrintedTemplate requires the printed number layout to read back
// the sequence it renders, so the history scan can find the last number.
func validatePrintedTemplate(inv InvoiceDefaults) error {
	parser, err := format.NewParser(inv.PrintedTemplate, inv.Prefix)
	if err != nil {
		return fmt.Errorf("catalog.invoice.printedTemplate: %w", err)
	}
	const sampleSeq = 1234
	printed, err := format.FormatPrintedNumber(inv.PrintedTemplate, inv.Prefix, sampleSeq)
	if err != nil {
		return fmt.Errorf("catalog.invoice.printedTemplate: %w", err)
	}
	if seq, ok := parser.Parse(printed); !ok || seq != sampleSeq {
		return fmt.Errorf("catalog.invoice.printedTemplate %q does not read back %q", inv.PrintedTemplate, printed)
	}
	return nil
}
