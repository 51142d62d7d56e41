package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ridelog/internal/domain"
	"ridelog/internal/repository"
)

// Ledger keys. Each holds a JSON array of records, oldest first.
const (
	tripsKey     = "ridelog:trips"
	expensesKey  = "ridelog:expenses"
	customersKey = "ridelog:customers"
)

const maxTxAttempts = 5

// ErrLedgerContention is returned when a write keeps losing optimistic
// transactions to concurrent writers.
var ErrLedgerContention = errors.New("ledger write contention")

// recordList is a size-capped list of JSON records stored under one key.
// Saving an existing ID replaces it in place; saving a new ID appends and
// evicts the oldest records beyond max.
type recordList[T any] struct {
	client *redis.Client
	key    string
	max    int
	id     func(*T) string
}

type getFunc func(ctx context.Context, key string) *redis.StringCmd

func (l *recordList[T]) read(ctx context.Context, get getFunc) ([]*T, error) {
	data, err := get(ctx, l.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var decoded []*T
	if err := json.Unmarshal(data, &decoded); err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "ledger",
			"key":       l.key,
		}).WithError(err).Warn("unreadable ledger data treated as empty")
		return nil, nil
	}

	items := decoded[:0]
	for _, item := range decoded {
		if item != nil {
			items = append(items, item)
		}
	}
	return items, nil
}

func (l *recordList[T]) all(ctx context.Context) ([]*T, error) {
	return l.read(ctx, l.client.Get)
}

func (l *recordList[T]) get(ctx context.Context, id string) (*T, error) {
	items, err := l.all(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if l.id(item) == id {
			return item, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (l *recordList[T]) save(ctx context.Context, item *T) error {
	id := l.id(item)
	return l.update(ctx, func(items []*T) ([]*T, error) {
		for i, existing := range items {
			if l.id(existing) == id {
				items[i] = item
				return items, nil
			}
		}

		items = append(items, item)
		if len(items) > l.max {
			items = items[len(items)-l.max:]
		}
		return items, nil
	})
}

func (l *recordList[T]) delete(ctx context.Context, id string) error {
	return l.update(ctx, func(items []*T) ([]*T, error) {
		for i, existing := range items {
			if l.id(existing) == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, repository.ErrNotFound
	})
}

// update runs a WATCH/MULTI read-modify-write on the list key.
func (l *recordList[T]) update(ctx context.Context, mutate func([]*T) ([]*T, error)) error {
	txf := func(tx *redis.Tx) error {
		items, err := l.read(ctx, tx.Get)
		if err != nil {
			return err
		}

		items, err = mutate(items)
		if err != nil {
			return err
		}

		data, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("encode %s: %w", l.key, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, l.key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := l.client.Watch(ctx, txf, l.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return ErrLedgerContention
}

// TripStore is a Redis implementation of repository.TripRepository.
type TripStore struct {
	list recordList[domain.Trip]
}

// NewTripStore creates a new TripStore.
func NewTripStore(client *redis.Client, max int) *TripStore {
	return &TripStore{list: recordList[domain.Trip]{
		client: client,
		key:    tripsKey,
		max:    max,
		id:     func(t *domain.Trip) string { return t.ID },
	}}
}

// Save inserts or replaces a trip.
func (s *TripStore) Save(ctx context.Context, trip *domain.Trip) error {
	return s.list.save(ctx, trip)
}

// GetByID retrieves a trip by ID.
func (s *TripStore) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	return s.list.get(ctx, id)
}

// GetAll retrieves all retained trips.
func (s *TripStore) GetAll(ctx context.Context) ([]*domain.Trip, error) {
	return s.list.all(ctx)
}

// Delete removes a trip by ID.
func (s *TripStore) Delete(ctx context.Context, id string) error {
	return s.list.delete(ctx, id)
}

// ExpenseStore is a Redis implementation of repository.ExpenseRepository.
type ExpenseStore struct {
	list recordList[domain.Expense]
}

// NewExpenseStore creates a new ExpenseStore.
func NewExpenseStore(client *redis.Client, max int) *ExpenseStore {
	return &ExpenseStore{list: recordList[domain.Expense]{
		client: client,
		key:    expensesKey,
		max:    max,
		id:     func(e *domain.Expense) string { return e.ID },
	}}
}

// Save inserts or replaces an expense.
func (s *ExpenseStore) Save(ctx context.Context, expense *domain.Expense) error {
	return s.list.save(ctx, expense)
}

// GetAll retrieves all retained expenses.
func (s *ExpenseStore) GetAll(ctx context.Context) ([]*domain.Expense, error) {
	return s.list.all(ctx)
}

// CustomerStore is a Redis implementation of repository.CustomerRepository.
type CustomerStore struct {
	list recordList[domain.Customer]
}

// NewCustomerStore creates a new CustomerStore.
func NewCustomerStore(client *redis.Client, max int) *CustomerStore {
	return &CustomerStore{list: recordList[domain.Customer]{
		client: client,
		key:    customersKey,
		max:    max,
		id:     func(c *domain.Customer) string { return c.ID },
	}}
}

// Save inserts or replaces a customer.
func (s *CustomerStore) Save(ctx context.Context, customer *domain.Customer) error {
	return s.list.save(ctx, customer)
}

// GetByID retrieves a customer by ID.
func (s *CustomerStore) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	return s.list.get(ctx, id)
}

// GetAll retrieves all retained customers.
func (s *CustomerStore) GetAll(ctx context.Context) ([]*domain.Customer, error) {
	return s.list.all(ctx)
}
