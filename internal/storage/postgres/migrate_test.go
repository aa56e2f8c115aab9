package postgres

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestSchemaIsIdempotent(t *testing.T) {
	t.Parallel()

	for _, stmt := range strings.Split(Schema(), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		require.Regexp(t, `^CREATE (TABLE|INDEX) IF NOT EXISTS`, stmt)
	}
	require.Contains(t, Schema(), "link_verifications")
	require.Contains(t, Schema(), "automation_posts")
}

func TestMigrateAppliesSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(Schema())).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, Migrate(context.Background(), mock))

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	require.ErrorContains(t, Migrate(context.Background(), mock), "apply schema: permission denied")
	require.NoError(t, mock.ExpectationsWereMet())
}
