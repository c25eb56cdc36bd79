package httpserver

import (
	"github.com/quave-io/frida-go/internal/domain"
	"github.com/quave-io/frida-go/internal/queryplan"
)

const transactionsRootTable = "transactions"

// listTransactions compiles req against the transactions table and
// executes it through CommonStorage.
func (s *Server) listTransactions(ctx domain.Context, req domain.FilterRequest) ([]domain.Transaction, error) {
	compiled, err := queryplan.Compile(req, transactionsRootTable, s.Registry)
	if err != nil {
		return nil, err
	}
	return s.Storage.ListTransactions(ctx, compiled)
}
