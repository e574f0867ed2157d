package sqldb

import (
	"database/sql"
	"errors"
)

var (
	ErrUnsupportedDriver        = errors.New("unsupported database driver")
	ErrTransactionNotFoundInCtx = errors.New("no transaction found in ctx")
	ErrNestedTransaction        = errors.New("nested transactions are not supported")
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
