package tenant

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type testRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid"`
	SessionID uuid.UUID `gorm:"type:uuid"`
}

func (testRow) TableName() string {
	return "test_rows"
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return gormDB, mock, mockDB
}

func TestSessionScope(t *testing.T) {
	t.Run("filters by tenant and session", func(t *testing.T) {
		db, mock, raw := setupMockDB(t)
		defer raw.Close()

		scope := academic.Scope{TenantID: uuid.New(), SessionID: uuid.New()}
		mock.ExpectQuery(`SELECT \* FROM "test_rows" WHERE tenant_id = \$1 AND session_id = \$2`).
			WithArgs(scope.TenantID, scope.SessionID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		var rows []testRow
		err := db.Scopes(SessionScope(scope)).Find(&rows).Error
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero scope matches nothing", func(t *testing.T) {
		db, mock, raw := setupMockDB(t)
		defer raw.Close()

		mock.ExpectQuery(`SELECT \* FROM "test_rows" WHERE 1 = 0`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		var rows []testRow
		err := db.Scopes(SessionScope(academic.Scope{})).Find(&rows).Error
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTenantScope(t *testing.T) {
	db, mock, raw := setupMockDB(t)
	defer raw.Close()

	tenantID := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "test_rows" WHERE tenant_id = \$1`).
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	var rows []testRow
	require.NoError(t, db.Scopes(TenantScope(tenantID)).Find(&rows).Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}
