package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDescribeMatchesExactTotals(t *testing.T) {
	catalog := DefaultCatalog()

	assert.Equal(t, "Lite Hosting £15 / Website Development £450", catalog.Describe(decimal.NewFromInt(465)))
	assert.Equal(t, "Business Hosting £69 / Website Development £450", catalog.Describe(decimal.RequireFromString("519.00")))
	assert.Equal(t, "", catalog.Describe(decimal.RequireFromString("465.01")))
	assert.Equal(t, "", catalog.Describe(decimal.Zero))
}

func TestNewCatalogHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yml")
	content := `
catalog:
  project:
    name: "Web Order"
    managerId: 7
  invoice:
    prefix: "INV"
  packages:
    - total: 99.5
      description: "Starter"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	holder, err := NewCatalogHolder(Config{CatalogPath: path}, zap.NewNop())
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, "Web Order", got.Project.Name)
	assert.Equal(t, 7, got.Project.ManagerID)
	assert.Equal(t, 3, got.Project.TypeID, "unset fields keep defaults")
	assert.Equal(t, "INV", got.Invoice.Prefix)
	require.Len(t, got.Packages, 1)
	assert.Equal(t, "Starter", got.Describe(decimal.RequireFromString("99.50")))
}

func TestNewCatalogHolderRejectsEmptyPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  invoice:\n    prefix: \" \"\n"), 0o600))

	_, err := NewCatalogHolder(Config{CatalogPath: path}, zap.NewNop())
	require.Error(t, err)
}

func TestValidateCatalogRejectsDuplicateTotals(t *testing.T) {
	catalog := DefaultCatalog()
	catalog.Packages = append(catalog.Packages, PricePackage{Total: 465, Description: "dup"})
	require.Error(t, validateCatalog(catalog))
}

func TestValidateCatalogPrintedTemplate(t *testing.T) {
	catalog := DefaultCatalog()
	catalog.Invoice.PrintedTemplate = "{PREFIX}-{SEQ4}"
	require.NoError(t, validateCatalog(catalog))

	for _, tmpl := range []string{"{PREFIX}", "{PREFIX}{SEQ}{SEQ}", "{PREFIX}{YEAR}{SEQ}", "{PREFIX}{SEQ0}"} {
		catalog.Invoice.PrintedTemplate = tmpl
		assert.Error(t, validateCatalog(catalog), tmpl)
	}
}
