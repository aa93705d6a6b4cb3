package migration

import (
	accountdomain "github.com/smallbiznis/fatura/internal/account/domain"
	auditdomain "github.com/smallbiznis/fatura/internal/audit/domain"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
	chargedomain "github.com/smallbiznis/fatura/internal/charge/domain"
	invoicedomain "github.com/smallbiznis/fatura/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/fatura/internal/payment/domain"
	recurringdomain "github.com/smallbiznis/fatura/internal/recurring/domain"
	"gorm.io/gorm"
)

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&accountdomain.Account{},
		&accountdomain.Category{},
		&accountdomain.Tag{},
		&recurringdomain.RecurringTransaction{},
		&accountdomain.Transaction{},
		&accountdomain.TransactionTag{},
		&carddomain.CreditCard{},
		&invoicedomain.Invoice{},
		&recurringdomain.RecurringCardPurchase{},
		&chargedomain.CardCharge{},
		&chargedomain.CardChargeTag{},
		&paymentdomain.InvoicePayment{},
		&auditdomain.AuditLog{},
	}
}

// AutoMigrate builds the schema from the gorm models. Used for sqlite and
// mysql, where the embedded postgres migrations do not apply.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
