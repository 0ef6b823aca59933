package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shortlinks/internal/entity"
)

func TestUniqueViolation(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantConstraint string
		want           bool
	}{
		{
			name:           "unique violation error",
			err:            &pgconn.PgError{Code: uniqueViolationErrCode, ConstraintName: "links_short_code_key"},
			wantConstraint: "links_short_code_key",
			want:           true,
		},
		{
			name: "not unique violation error",
			err:  &pgconn.PgError{Code: "23514"},
			want: false,
		},
		{
			name: "not PgError",
			err:  errors.New("unknown error"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			constraint, ok := uniqueViolation(tt.err)

			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.wantConstraint, constraint)
		})
	}
}

type LinkRepositoryTestSuite struct {
	suite.Suite
	errUnknown      error
	errAffectedRows error
	columns         []string
	id              uuid.UUID
	createdAt       time.Time
	mock            sqlmock.Sqlmock
	repo            *LinkRepository
}

func (suite *LinkRepositoryTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
	suite.errAffectedRows = errors.New("affected rows error")
	suite.columns = []string{"id", "short_code", "original_url", "clicks", "created_at"}
	suite.id = uuid.MustParse("6f1c2a0e-4b1d-4a8e-9b57-3f0f6f1c2a0e")
	suite.createdAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func (suite *LinkRepositoryTestSuite) SetupSubTest() {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		suite.T().Fatalf("Failed to create mock database: %v", err)
	}
	suite.T().Cleanup(func() {
		mockDB.Close()
	})

	db := sqlx.NewDb(mockDB, "sqlmock")

	suite.mock = mock
	suite.repo = NewLinkRepository(db)
}

func (suite *LinkRepositoryTestSuite) TearDownSubTest() {
	suite.NoError(suite.mock.ExpectationsWereMet())
}

func (suite *LinkRepositoryTestSuite) row(clicks int64) *sqlmock.Rows {
	return sqlmock.NewRows(suite.columns).
		AddRow(suite.id.String(), "abc1234", "https://example.com", clicks, suite.createdAt)
}

func (suite *LinkRepositoryTestSuite) wantLink(clicks int64) *entity.Link {
	return &entity.Link{
		ID:          suite.id,
		ShortCode:   "abc1234",
		OriginalURL: "https://example.com",
		Clicks:      clicks,
		CreatedAt:   suite.createdAt,
	}
}

func (suite *LinkRepositoryTestSuite) TestSave() {
	suite.Run("short code exists", func() {
		suite.mock.ExpectQuery(`INSERT INTO links`).
			WithArgs(suite.id, "abc1234", "https://example.com").
			WillReturnError(&pgconn.PgError{Code: uniqueViolationErrCode, ConstraintName: "links_short_code_key"})

		link, err := suite.repo.Save(context.Background(), suite.id, "abc1234", "https://example.com")

		suite.ErrorIs(err, entity.ErrShortCodeExists)
		suite.Nil(link)
	})

	suite.Run("original url exists", func() {
		suite.mock.ExpectQuery(`INSERT INTO links`).
			WithArgs(suite.id, "abc1234", "https://example.com").
			WillReturnError(&pgconn.PgError{Code: uniqueViolationErrCode, ConstraintName: originalURLConstraint})

		link, err := suite.repo.Save(context.Background(), suite.id, "abc1234", "https://example.com")

		suite.ErrorIs(err, entity.ErrOriginalURLExists)
		suite.Nil(link)
	})

	suite.Run("unknown error", func() {
		suite.mock.ExpectQuery(`INSERT INTO links`).
			WithArgs(suite.id, "abc1234", "https://example.com").
			WillReturnError(suite.errUnknown)

		link, err := suite.repo.Save(context.Background(), suite.id, "abc1234", "https://example.com")

		suite.ErrorIs(err, entity.ErrStoreUnavailable)
		suite.NotErrorIs(err, suite.errUnknown)
		suite.Nil(link)
	})

	suite.Run("timeout", func() {
		suite.mock.ExpectQuery(`INSERT INTO links`).
			WithArgs(suite.id, "abc1234", "https://example.com").
			WillReturnError(context.DeadlineExceeded)

		link, err := suite.repo.Save(context.Background(), suite.id, "abc1234", "https://example.com")

		suite.ErrorIs(err, entity.ErrTimeout)
		suite.Nil(link)
	})

	suite.Run("success", func() {
		suite.mock.ExpectQuery(`INSERT INTO links`).
			WithArgs(suite.id, "abc1234", "https://example.com").
			WillReturnRows(suite.row(0))

		link, err := suite.repo.Save(context.Background(), suite.id, "abc1234", "https://example.com")

		suite.NoError(err)
		suite.Equal(suite.wantLink(0), link)
	})
}

func (suite *LinkRepositoryTestSuite) TestFindByOriginalURL() {
	suite.Run("link not found", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM links WHERE digest\(original_url, 'sha256'\)`).
			WithArgs("https://example.com").
			WillReturnError(sql.ErrNoRows)

		link, err := suite.repo.FindByOriginalURL(context.Background(), "https://example.com")

		suite.ErrorIs(err, entity.ErrLinkNotFound)
		suite.Nil(link)
	})

	suite.Run("unknown error", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM links WHERE digest\(original_url, 'sha256'\)`).
			WithArgs("https://example.com").
			WillReturnError(suite.errUnknown)

		link, err := suite.repo.FindByOriginalURL(context.Background(), "https://example.com")

		suite.ErrorIs(err, entity.ErrStoreUnavailable)
		suite.Nil(link)
	})

	suite.Run("success", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM links WHERE digest\(original_url, 'sha256'\)`).
			WithArgs("https://example.com").
			WillReturnRows(suite.row(2))

		link, err := suite.repo.FindByOriginalURL(context.Background(), "https://example.com")

		suite.NoError(err)
		suite.Equal(suite.wantLink(2), link)
	})
}

func (suite *LinkRepositoryTestSuite) TestFindByShortCode() {
	suite.Run("link not found", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM links WHERE short_code`).
			WithArgs("abc1234").
			WillReturnError(sql.ErrNoRows)

		link, err := suite.repo.FindByShortCode(context.Background(), "abc1234")

		suite.ErrorIs(err, entity.ErrLinkNotFound)
		suite.Nil(link)
	})

	suite.Run("unknown error", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM links WHERE short_code`).
			WithArgs("abc1234").
			WillReturnError(suite.errUnknown)

		link, err := suite.repo.FindByShortCode(context.Background(), "abc1234")

		suite.ErrorIs(err, entity.ErrStoreUnavailable)
		suite.Nil(link)
	})

	suite.Run("success", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM links WHERE short_code`).
			WithArgs("abc1234").
			WillReturnRows(suite.row(5))

		link, err := suite.repo.FindByShortCode(context.Background(), "abc1234")

		suite.NoError(err)
		suite.Equal(suite.wantLink(5), link)
	})
}

func (suite *LinkRepositoryTestSuite) TestIncrementClicks() {
	suite.Run("link not found", func() {
		suite.mock.ExpectQuery(`UPDATE links SET clicks = clicks \+ 1`).
			WithArgs("abc1234").
			WillReturnError(sql.ErrNoRows)

		link, err := suite.repo.IncrementClicks(context.Background(), "abc1234")

		suite.ErrorIs(err, entity.ErrLinkNotFound)
		suite.Nil(link)
	})

	suite.Run("unknown error", func() {
		suite.mock.ExpectQuery(`UPDATE links SET clicks = clicks \+ 1`).
			WithArgs("abc1234").
			WillReturnError(suite.errUnknown)

		link, err := suite.repo.IncrementClicks(context.Background(), "abc1234")

		suite.ErrorIs(err, entity.ErrStoreUnavailable)
		suite.Nil(link)
	})

	suite.Run("success", func() {
		suite.mock.ExpectQuery(`UPDATE links SET clicks = clicks \+ 1`).
			WithArgs("abc1234").
			WillReturnRows(suite.row(1))

		link, err := suite.repo.IncrementClicks(context.Background(), "abc1234")

		suite.NoError(err)
		suite.Equal(suite.wantLink(1), link)
	})
}

func (suite *LinkRepositoryTestSuite) TestList() {
	suite.Run("unknown error", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM links ORDER BY created_at DESC, short_code DESC`).
			WillReturnError(suite.errUnknown)

		links, err := suite.repo.List(context.Background())

		suite.ErrorIs(err, entity.ErrStoreUnavailable)
		suite.Nil(links)
	})

	suite.Run("empty", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM links ORDER BY created_at DESC, short_code DESC`).
			WillReturnRows(sqlmock.NewRows(suite.columns))

		links, err := suite.repo.List(context.Background())

		suite.NoError(err)
		suite.NotNil(links)
		suite.Empty(links)
	})

	suite.Run("success", func() {
		newer := uuid.New()
		rows := sqlmock.NewRows(suite.columns).
			AddRow(newer.String(), "new0000", "https://new.example.com", 0, suite.createdAt.Add(time.Minute)).
			AddRow(suite.id.String(), "abc1234", "https://example.com", 3, suite.createdAt)

		suite.mock.ExpectQuery(`SELECT (.+) FROM links ORDER BY created_at DESC, short_code DESC`).
			WillReturnRows(rows)

		links, err := suite.repo.List(context.Background())

		suite.NoError(err)
		suite.Len(links, 2)
		suite.Equal(newer, links[0].ID)
		suite.Equal(suite.wantLink(3), links[1])
	})
}

func (suite *LinkRepositoryTestSuite) TestRemove() {
	suite.Run("unknown error", func() {
		suite.mock.ExpectExec(`DELETE FROM links`).
			WithArgs(suite.id).
			WillReturnError(suite.errUnknown)

		removed, err := suite.repo.Remove(context.Background(), suite.id)

		suite.ErrorIs(err, entity.ErrStoreUnavailable)
		suite.False(removed)
	})

	suite.Run("rows affected error", func() {
		suite.mock.ExpectExec(`DELETE FROM links`).
			WithArgs(suite.id).
			WillReturnResult(sqlmock.NewErrorResult(suite.errAffectedRows))

		removed, err := suite.repo.Remove(context.Background(), suite.id)

		suite.ErrorIs(err, entity.ErrStoreUnavailable)
		suite.False(removed)
	})

	suite.Run("link not found", func() {
		suite.mock.ExpectExec(`DELETE FROM links`).
			WithArgs(suite.id).
			WillReturnResult(sqlmock.NewResult(0, 0))

		removed, err := suite.repo.Remove(context.Background(), suite.id)

		suite.NoError(err)
		suite.False(removed)
	})

	suite.Run("success", func() {
		suite.mock.ExpectExec(`DELETE FROM links`).
			WithArgs(suite.id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		removed, err := suite.repo.Remove(context.Background(), suite.id)

		suite.NoError(err)
		suite.True(removed)
	})
}

func TestLinkRepository(t *testing.T) {
	suite.Run(t, new(LinkRepositoryTestSuite))
}
