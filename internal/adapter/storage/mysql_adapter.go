package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/betselot/herdstore/internal/core/domain"
	"github.com/betselot/herdstore/internal/port"
)

const mysqlDupEntry = 1062

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// PlaceOrder runs the whole reservation in one transaction: dedup insert,
// row-locked availability check, order insert, availability flip. If the
// event id was already processed with a committed order, that confirmation
// is replayed instead.
func (m *MySQLAdapter) PlaceOrder(ctx context.Context, eventID string, draft domain.Order) (*domain.PlacedOrder, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO processed_events (event_id, outcome, processed_at)
		VALUES (?, 'accepted', NOW())`,
		eventID,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDupEntry {
			return m.replay(ctx, eventID)
		}
		return nil, fmt.Errorf("insert dedup record: %w", err)
	}

	var animal domain.Animal
	err = tx.QueryRowContext(ctx, `
		SELECT id, kind, size, price, available
		FROM animals WHERE id = ? FOR UPDATE`,
		draft.AnimalID,
	).Scan(&animal.ID, &animal.Kind, &animal.Size, &animal.Price, &animal.Available)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrAnimalUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("lock animal: %w", err)
	}
	if !animal.Available {
		return nil, port.ErrAnimalUnavailable
	}

	total := animal.Price * int64(draft.Quantity)

	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (user_id, animal_id, quantity, delivery_address, total_price, payment_method, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', NOW())`,
		draft.BuyerID, draft.AnimalID, draft.Quantity, draft.DeliveryAddress,
		total, draft.PaymentMethod,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("order id: %w", err)
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE animals SET available = 0 WHERE id = ? AND available = 1`,
		draft.AnimalID,
	)
	if err != nil {
		return nil, fmt.Errorf("flip availability: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, port.ErrAnimalUnavailable
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE processed_events SET outcome = 'ordered', order_id = ? WHERE event_id = ?`,
		orderID, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("finalize dedup record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &domain.PlacedOrder{
		Confirmation: domain.OrderConfirmation{
			OrderID:    orderID,
			TotalPrice: total,
			Status:     domain.OrderStatusPending,
		},
		Animal: animal,
	}, nil
}

// replay looks up the order a prior delivery of this event committed.
func (m *MySQLAdapter) replay(ctx context.Context, eventID string) (*domain.PlacedOrder, error) {
	var placed domain.PlacedOrder
	err := m.db.QueryRowContext(ctx, `
		SELECT o.id, o.total_price, o.status, a.id, a.kind, a.size, a.price
		FROM processed_events e
		JOIN orders o ON o.id = e.order_id
		JOIN animals a ON a.id = o.animal_id
		WHERE e.event_id = ?`,
		eventID,
	).Scan(
		&placed.Confirmation.OrderID,
		&placed.Confirmation.TotalPrice,
		&placed.Confirmation.Status,
		&placed.Animal.ID,
		&placed.Animal.Kind,
		&placed.Animal.Size,
		&placed.Animal.Price,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrDuplicateEvent
	}
	if err != nil {
		return nil, fmt.Errorf("replay lookup: %w", err)
	}
	placed.Replayed = true
	return &placed, nil
}

func (m *MySQLAdapter) GetBuyerByTelegramID(ctx context.Context, telegramID string) (*domain.Buyer, error) {
	var b domain.Buyer
	var phone sql.NullString
	err := m.db.QueryRowContext(ctx, `
		SELECT id, telegram_id, name, phone, language, created_at
		FROM users WHERE telegram_id = ?`,
		telegramID,
	).Scan(&b.ID, &b.TelegramID, &b.Name, &phone, &b.Language, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query buyer: %w", err)
	}
	b.Phone = phone.String
	return &b, nil
}

func (m *MySQLAdapter) UpsertBuyer(ctx context.Context, b domain.Buyer) (*domain.Buyer, error) {
	if b.Language == "" {
		b.Language = "am"
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, name, phone, language, created_at)
		VALUES (?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE name = VALUES(name), phone = VALUES(phone), language = VALUES(language)`,
		b.TelegramID, b.Name, b.Phone, b.Language,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert buyer: %w", err)
	}
	return m.GetBuyerByTelegramID(ctx, b.TelegramID)
}

func (m *MySQLAdapter) ListAvailableAnimals(ctx context.Context) ([]domain.Animal, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, kind, size, weight_range, price, image_url, available, created_at
		FROM animals WHERE available = 1 ORDER BY kind, size`)
	if err != nil {
		return nil, fmt.Errorf("query animals: %w", err)
	}
	defer rows.Close()

	var animals []domain.Animal
	for rows.Next() {
		var a domain.Animal
		var weightRange, imageURL sql.NullString
		if err := rows.Scan(&a.ID, &a.Kind, &a.Size, &weightRange, &a.Price,
			&imageURL, &a.Available, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan animal: %w", err)
		}
		a.WeightRange = weightRange.String
		a.ImageURL = imageURL.String
		animals = append(animals, a)
	}
	return animals, rows.Err()
}

func (m *MySQLAdapter) CreateAnimal(ctx context.Context, a domain.Animal) (int64, error) {
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO animals (kind, size, weight_range, price, image_url, available, created_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW())`,
		a.Kind, a.Size, a.WeightRange, a.Price, a.ImageURL, a.Available,
	)
	if err != nil {
		return 0, fmt.Errorf("insert animal: %w", err)
	}
	return res.LastInsertId()
}

// LatestOrders and SalesByKind feed the admin reports; both leave
// cancelled orders out.
func (m *MySQLAdapter) LatestOrders(ctx context.Context, limit int) ([]domain.OrderSummary, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT o.id, u.name, u.telegram_id, a.kind, a.size, o.quantity, o.total_price, o.created_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		JOIN animals a ON a.id = o.animal_id
		WHERE o.status != 'cancelled'
		ORDER BY o.created_at DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest orders: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderSummary
	for rows.Next() {
		var o domain.OrderSummary
		if err := rows.Scan(&o.ID, &o.BuyerName, &o.BuyerTelegramID, &o.AnimalKind,
			&o.AnimalSize, &o.Quantity, &o.TotalPrice, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order summary: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) SalesByKind(ctx context.Context) ([]domain.KindStat, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT a.kind, COUNT(*), COALESCE(SUM(o.total_price), 0)
		FROM orders o
		JOIN animals a ON a.id = o.animal_id
		WHERE o.status != 'cancelled'
		GROUP BY a.kind`)
	if err != nil {
		return nil, fmt.Errorf("query sales stats: %w", err)
	}
	defer rows.Close()

	var out []domain.KindStat
	for rows.Next() {
		var s domain.KindStat
		if err := rows.Scan(&s.Kind, &s.Count, &s.Total); err != nil {
			return nil, fmt.Errorf("scan kind stat: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
