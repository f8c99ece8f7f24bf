package db

import (
	"fmt"
	"strings"

	"github.com/diewo77/nexusbilling/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Column is a field added after the first revision of the store.
type Column struct {
	Table      string
	Name       string
	Definition string // type and default, e.g. "TEXT DEFAULT ''"
}

// Columns is applied in order on every start. Entries are append-only.
var Columns = []Column{
	{"products", "sku", "TEXT DEFAULT ''"},
	{"products", "category", "TEXT DEFAULT 'General'"},
	{"invoices", "customer_email", "TEXT DEFAULT ''"},
	{"invoices", "due_date", "DATE"},
	{"invoices", "status", "TEXT DEFAULT 'Pending'"},
	{"invoices", "subtotal", "DECIMAL(12,2) DEFAULT 0"},
	{"invoices", "tax_rate", "DECIMAL(6,2) DEFAULT 0"},
	{"invoices", "tax_amount", "DECIMAL(12,2) DEFAULT 0"},
}

// Report lists what a run of Evolve changed.
type Report struct {
	CreatedTables []string
	AddedColumns  []string
	Skipped       []string
	Failed        []string
}

// Changed reports whether the run altered the schema.
func (r Report) Changed() bool {
	return len(r.CreatedTables) > 0 || len(r.AddedColumns) > 0
}

// Evolve brings the store up to the current shape. Missing tables are
// created, then every entry of Columns is added when absent. Nothing is
// dropped or altered. A column that cannot be added is logged and
// recorded in the report; only a failure to create a table is returned.
func Evolve(conn *gorm.DB, log *zap.Logger) (Report, error) {
	return evolve(conn, log, Columns)
}

func evolve(conn *gorm.DB, log *zap.Logger, columns []Column) (Report, error) {
	var rep Report
	for _, m := range []any{&models.Product{}, &models.Invoice{}, &models.InvoiceItem{}} {
		stmt := &gorm.Statement{DB: conn}
		if err := stmt.Parse(m); err != nil {
			return rep, fmt.Errorf("parse model %T: %w", m, err)
		}
		table := stmt.Schema.Table
		if conn.Migrator().HasTable(table) {
			continue
		}
		if err := conn.Migrator().CreateTable(m); err != nil {
			return rep, fmt.Errorf("create table %s: %w", table, err)
		}
		log.Info("created table", zap.String("table", table))
		rep.CreatedTables = append(rep.CreatedTables, table)
	}

	for _, c := range columns {
		key := c.Table + "." + c.Name
		if conn.Migrator().HasColumn(c.Table, c.Name) {
			rep.Skipped = append(rep.Skipped, key)
			continue
		}
		err := conn.Exec("ALTER TABLE ? ADD COLUMN ? "+c.Definition,
			clause.Table{Name: c.Table}, clause.Column{Name: c.Name}).Error
		switch {
		case err == nil:
			log.Info("added column", zap.String("column", key))
			rep.AddedColumns = append(rep.AddedColumns, key)
		case columnExists(err):
			rep.Skipped = append(rep.Skipped, key)
		default:
			log.Warn("could not add column", zap.String("column", key), zap.Error(err))
			rep.Failed = append(rep.Failed, key)
		}
	}
	if rep.added("invoices.subtotal") {
		if err := backfillSubtotals(conn, log); err != nil {
			log.Warn("could not backfill invoice subtotals", zap.Error(err))
			rep.Failed = append(rep.Failed, "invoices.subtotal")
		}
	}
	log.Debug("schema evolution done",
		zap.Int("created_tables", len(rep.CreatedTables)),
		zap.Int("added_columns", len(rep.AddedColumns)),
		zap.Int("failed", len(rep.Failed)))
	return rep, nil
}

func (r Report) added(key string) bool {
	for _, k := range r.AddedColumns {
		if k == key {
			return true
		}
	}
	return false
}

// backfillSubtotals runs once, right after the subtotal column appears.
// Invoices written before tax existed carry only a total, so their
// subtotal is the total and their tax is zero.
func backfillSubtotals(conn *gorm.DB, log *zap.Logger) error {
	res := conn.Exec(`UPDATE invoices SET subtotal = total_amount
		WHERE COALESCE(subtotal, 0) = 0 AND COALESCE(tax_amount, 0) = 0 AND total_amount IS NOT NULL`)
	if res.Error != nil {
		return res.Error
	}
	log.Info("backfilled invoice subtotals", zap.Int64("rows", res.RowsAffected))
	return nil
}

func columnExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}
