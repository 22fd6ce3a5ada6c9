package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrTableNotFound = errors.New("table not found")

const (
	TableActive    = "active"
	TableFinished  = "finished"
	TableCancelled = "cancelled"
)

const (
	tableKeyPrefix = "table:"

	// mirror entries expire on their own; the in-memory room is the
	// authority for live play
	tableExpiration = 2 * time.Hour

	// dealer seat plus three bettor seats
	maxSeats = 4
)

// Table is the lobby mirror of a room: code, dealer name, lifecycle
// state and occupied seat count. It intentionally knows nothing about
// in-hand state.
type Table struct {
	Code      string `json:"code"`
	Dealer    string `json:"dealer"`
	State     string `json:"state"`
	Seats     int    `json:"seats"`
	CreatedAt int64  `json:"created_at"`
}

func (that *Table) HasOpenSeat() bool {
	return that.State == TableActive && that.Seats < maxSeats
}

type LobbyRepository interface {
	Create(ctx context.Context, code, dealer string) (*Table, error)
	GetByCode(ctx context.Context, code string) (*Table, error)
	ListOpen(ctx context.Context) ([]*Table, error)
	IncrementSeats(ctx context.Context, code string) (*Table, error)
	DecrementSeats(ctx context.Context, code string) (*Table, error)
	MarkFinished(ctx context.Context, code string) error
}

type dbLobby struct {
	client *redis.Client
}

func NewLobbyRepository(client *redis.Client) LobbyRepository {
	return &dbLobby{
		client: client,
	}
}

func (that *dbLobby) Create(ctx context.Context, code, dealer string) (*Table, error) {
	table := &Table{
		Code:      code,
		Dealer:    dealer,
		State:     TableActive,
		Seats:     1,
		CreatedAt: time.Now().Unix(),
	}

	if err := that.save(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return table, nil
}

func (that *dbLobby) GetByCode(ctx context.Context, code string) (*Table, error) {
	response, err := that.client.Get(ctx, tableKeyPrefix+code).Result()

	if errors.Is(err, redis.Nil) {
		return nil, ErrTableNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}

	var table Table
	if err = json.Unmarshal([]byte(response), &table); err != nil {
		return nil, fmt.Errorf("failed to unmarshal table: %w", err)
	}

	return &table, nil
}

// ListOpen - returns every active table with a free seat.
func (that *dbLobby) ListOpen(ctx context.Context) ([]*Table, error) {
	keys, err := that.client.Keys(ctx, tableKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables := make([]*Table, 0, len(keys))
	for _, key := range keys {
		table, err := that.GetByCode(ctx, key[len(tableKeyPrefix):])
		if errors.Is(err, ErrTableNotFound) {
			continue // expired between KEYS and GET
		}
		if err != nil {
			return nil, err
		}

		if table.HasOpenSeat() {
			tables = append(tables, table)
		}
	}

	return tables, nil
}

func (that *dbLobby) IncrementSeats(ctx context.Context, code string) (*Table, error) {
	table, err := that.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	table.Seats++
	if err = that.save(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to update table seats: %w", err)
	}

	return table, nil
}

// DecrementSeats - releases one seat; an empty table is cancelled.
func (that *dbLobby) DecrementSeats(ctx context.Context, code string) (*Table, error) {
	table, err := that.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	table.Seats--
	if table.Seats <= 0 {
		table.Seats = 0
		table.State = TableCancelled
	}

	if err = that.save(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to update table seats: %w", err)
	}

	return table, nil
}

func (that *dbLobby) MarkFinished(ctx context.Context, code string) error {
	table, err := that.GetByCode(ctx, code)
	if err != nil {
		return err
	}

	table.State = TableFinished
	if err = that.save(ctx, table); err != nil {
		return fmt.Errorf("failed to mark table finished: %w", err)
	}

	return nil
}

func (that *dbLobby) save(ctx context.Context, table *Table) error {
	tableJSON, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("could not marshal table: %w", err)
	}

	if err = that.client.Set(ctx, tableKeyPrefix+table.Code, tableJSON, tableExpiration).Err(); err != nil {
		return fmt.Errorf("failed to set table: %w", err)
	}

	return nil
}
