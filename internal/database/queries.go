package database

import (
	"fmt"

	"github.com/ponytojas/go-udp-sensor/internal/models"
)

// Table names are checked by config.Validate before they reach these builders.

const tableExistsSQL = `
	SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_schema = 'public'
		AND table_name = $1
	)`

func createTableSQL(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE %s (
			time TIMESTAMPTZ NOT NULL,
			source TEXT NOT NULL,
			temperature REAL,
			humidity REAL,
			device_ts BIGINT NOT NULL
		)`, table)
}

func createHypertableSQL(table string) string {
	return fmt.Sprintf(`SELECT create_hypertable('%s', 'time')`, table)
}

func insertReadingSQL(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (time, source, temperature, humidity, device_ts)
		VALUES ($1, $2, $3, $4, $5)`, table)
}

// device_ts is BIGINT because Postgres has no unsigned 32-bit type
func insertArgs(r models.Reading) []any {
	return []any{
		r.ReceivedAt,
		r.SourceIP(),
		r.Temperature,
		r.Humidity,
		int64(r.DeviceTimestamp),
	}
}
