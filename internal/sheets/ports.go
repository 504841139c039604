// Package sheets defines where decrypted transactions may be exported to.
// Exports go only to destinations owned by the user.
package sheets

import (
	"context"

	"cifra/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionExporter appends decrypted transactions of one month to an
	// external sheet and returns a reference to the written rows.
	TransactionExporter interface {
		ExportTransactions(ctx context.Context, year, month int, txs []core.Transaction) (ref string, err error)
	}
)
