package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// unique_violation, https://www.postgresql.org/docs/current/errcodes-appendix.html
const pqUniqueViolation = "23505"

// trapNoRowsErr maps the driver's empty-result error to a domain error.
func trapNoRowsErr(err, domainErr error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return domainErr
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps a unique-constraint violation to a domain error.
// Racing inserts both pass the service pre-check; the loser surfaces here.
func trapUniqueErr(err, domainErr error, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
		return domainErr
	}
	return errors.Wrap(err, msg)
}
