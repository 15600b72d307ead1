package db

import "context"

// InsertReturningID executes an INSERT written with `?` placeholders and returns the generated
// primary key. PostgreSQL has no LastInsertId, so there the statement gets a RETURNING clause.
func InsertReturningID(ctx context.Context, sess Session, query string, args ...interface{}) (int64, error) {
	if sess.DriverName() == postgresDriverName {
		var id int64
		err := sess.QueryRowxContext(ctx, sess.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := sess.ExecContext(ctx, sess.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
