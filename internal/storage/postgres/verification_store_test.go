package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/backlinkoo/blog-engine/internal/verify"
)

func TestVerificationStoreSaveInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewVerificationStore(mock)
	require.NoError(t, err)

	checked := time.Unix(1700000000, 0).UTC()
	res := verify.Result{
		ID:             "018f0000-0000-7000-8000-000000000000",
		SourceURL:      "https://blog.example.com/post",
		TargetURL:      "https://target.com",
		AnchorText:     "target",
		StatusCode:     200,
		FinalURL:       "https://blog.example.com/post",
		LinkFound:      true,
		LinkAttributes: &verify.LinkAttributes{Href: "https://target.com", AnchorText: "target"},
		AnchorMatches:  true,
		Dofollow:       true,
		Score:          100,
		SnapshotURI:    "memory://snapshots/blog.example.com/abc.html",
		CheckedAt:      checked,
	}

	mock.ExpectExec("INSERT INTO link_verifications").
		WithArgs(
			res.ID,
			res.SourceURL,
			res.TargetURL,
			res.AnchorText,
			res.StatusCode,
			res.FinalURL,
			[]byte(`[]`),
			res.LinkFound,
			[]byte(`{"href":"https://target.com","anchor_text":"target"}`),
			res.AnchorMatches,
			res.Dofollow,
			res.UsedHeadless,
			res.Score,
			res.SnapshotURI,
			res.CheckedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), res))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationStoreAssignsID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewVerificationStore(mock)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO link_verifications").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), verify.Result{SourceURL: "https://a.com"}))
	require.NoError(t, mock.ExpectationsWereMet())
}
