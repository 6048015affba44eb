package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
	"go.uber.org/zap"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seu-repo/energy-sentinel/internal/domain"
)

var (
	sqlDB *sql.DB
	mock  sqlmock.Sqlmock
	gdb   *gorm.DB
)

func setUp() {
	sqlDB, mock, _ = sqlmock.New()
	gdb, _ = gorm.Open(gormpg.New(gormpg.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

func tearDown() {
	sqlDB.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func TestConsumptionRepository_Stats(t *testing.T) {
	it(func() {
		testCases := []struct {
			name    string
			rows    *sqlmock.Rows
			fetchErr error

			expectedCount int64
			expectedMean  float64
			errorExpected bool
		}{
			{
				name: "Aggregates returned",
				rows: sqlmock.NewRows([]string{"count", "mean", "std_dev", "min_value", "max_value"}).
					AddRow(4, 2.5, 1.118, 1.0, 4.0),
				expectedCount: 4,
				expectedMean:  2.5,
			},
			{
				name: "No readings in window",
				rows: sqlmock.NewRows([]string{"count", "mean", "std_dev", "min_value", "max_value"}).
					AddRow(0, nil, nil, nil, nil),
				expectedCount: 0,
				expectedMean:  0,
			},
			{
				name:          "Query error",
				fetchErr:      errors.New("connection reset"),
				errorExpected: true,
			},
		}

		repo := NewConsumptionRepository(gdb, zap.NewNop())
		from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		to := from.Add(7 * 24 * time.Hour)

		for _, tc := range testCases {
			q := mock.ExpectQuery(`SELECT COUNT\(\*\) AS count, AVG\(value\) AS mean, STDDEV_POP\(value\) AS std_dev.* FROM "consumption_records" WHERE device_id = \$1 AND timestamp >= \$2 AND timestamp < \$3`).
				WithArgs("meter-1", from, to)
			if tc.fetchErr != nil {
				q.WillReturnError(tc.fetchErr)
			} else {
				q.WillReturnRows(tc.rows)
			}

			stats, err := repo.Stats(context.Background(), "meter-1", from, to)
			if tc.errorExpected != (err != nil) {
				t.Errorf("%s: expected error: %v, got: %v", tc.name, tc.errorExpected, err)
				continue
			}
			if tc.errorExpected {
				continue
			}
			if stats.Count != tc.expectedCount {
				t.Errorf("%s: expected count %d, got %d", tc.name, tc.expectedCount, stats.Count)
			}
			if stats.Mean != tc.expectedMean {
				t.Errorf("%s: expected mean %v, got %v", tc.name, tc.expectedMean, stats.Mean)
			}
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestConsumptionRepository_FindByDeviceInRange(t *testing.T) {
	it(func() {
		repo := NewConsumptionRepository(gdb, zap.NewNop())
		from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		to := from.Add(24 * time.Hour)

		rows := sqlmock.NewRows([]string{"id", "device_id", "user_id", "timestamp", "value", "unit", "source"}).
			AddRow("r1", "meter-1", "u1", from.Add(time.Hour), 1.5, "kWh", "csv").
			AddRow("r2", "meter-1", "u1", from.Add(2*time.Hour), 2.5, "kWh", "csv")

		mock.ExpectQuery(`SELECT \* FROM "consumption_records" WHERE device_id = \$1 AND timestamp >= \$2 AND timestamp < \$3 ORDER BY timestamp asc`).
			WithArgs("meter-1", from, to).
			WillReturnRows(rows)

		recs, err := repo.FindByDeviceInRange(context.Background(), "meter-1", from, to)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(recs) != 2 {
			t.Fatalf("expected 2 records, got %d", len(recs))
		}
		if recs[0].ID != "r1" || recs[1].Value != 2.5 {
			t.Errorf("unexpected records: %+v", recs)
		}
		if recs[0].Unit != domain.UnitKWh {
			t.Errorf("expected unit kWh, got %s", recs[0].Unit)
		}
	})
}

func TestDeviceRepository_SetOwner(t *testing.T) {
	it(func() {
		testCases := []struct {
			name         string
			rowsAffected int64
			expected     bool
		}{
			{name: "Unowned device claimed", rowsAffected: 1, expected: true},
			{name: "Already owned", rowsAffected: 0, expected: false},
		}

		repo := NewDeviceRepository(gdb, zap.NewNop())

		for _, tc := range testCases {
			mock.ExpectExec(`UPDATE "devices" SET "owner_id"=\$1,"updated_at"=\$2 WHERE id = \$3 AND \(owner_id = '' OR owner_id IS NULL\)`).
				WithArgs("user-1", sqlmock.AnyArg(), "meter-1").
				WillReturnResult(sqlmock.NewResult(0, tc.rowsAffected))

			claimed, err := repo.SetOwner(context.Background(), "meter-1", "user-1")
			if err != nil {
				t.Errorf("%s: expected no error, got %v", tc.name, err)
			}
			if claimed != tc.expected {
				t.Errorf("%s: expected claimed=%v, got %v", tc.name, tc.expected, claimed)
			}
		}
	})
}
