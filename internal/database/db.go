package database

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"

	"github.com/ponytojas/go-udp-sensor/config"
	"github.com/ponytojas/go-udp-sensor/internal/models"
)

// TimescaleDB stores readings in a hypertable
type TimescaleDB struct {
	conn      *pgx.Conn
	tableName string
}

// NewTimescaleDB creates a new TimescaleDB instance
func NewTimescaleDB(ctx context.Context, cfg *config.Config) (*TimescaleDB, error) {
	conn, err := pgx.Connect(ctx, cfg.GetDBConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &TimescaleDB{
		conn:      conn,
		tableName: cfg.Timescale.TableName,
	}, nil
}

// Close closes the database connection
func (db *TimescaleDB) Close() error {
	return db.conn.Close(context.Background())
}

// InitializeTable checks if the table exists and creates it if it doesn't
func (db *TimescaleDB) InitializeTable(ctx context.Context) error {
	var exists bool
	err := db.conn.QueryRow(ctx, tableExistsSQL, db.tableName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if table exists: %w", err)
	}

	if exists {
		log.Printf("Table %s already exists", db.tableName)
		return nil
	}

	log.Printf("Creating table %s...", db.tableName)
	if _, err := db.conn.Exec(ctx, createTableSQL(db.tableName)); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	if _, err := db.conn.Exec(ctx, createHypertableSQL(db.tableName)); err != nil {
		return fmt.Errorf("failed to convert table to hypertable: %w", err)
	}

	log.Printf("Table %s created and converted to hypertable", db.tableName)
	return nil
}

// Store inserts one reading
func (db *TimescaleDB) Store(ctx context.Context, r models.Reading) error {
	_, err := db.conn.Exec(ctx, insertReadingSQL(db.tableName), insertArgs(r)...)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}
