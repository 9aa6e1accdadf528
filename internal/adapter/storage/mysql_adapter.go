package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/medstore/internal/core/domain"
)

const orderColumns = `id, order_number, user_id, email, status, payment_status, total,
	carrier, tracking_number, checkout_session_id, payment_id, created_at, updated_at`

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.OrderNumber, order.UserID, order.Email, order.Status, order.PaymentStatus,
		order.Total, order.Carrier, order.TrackingNumber, order.CheckoutSessionID, order.PaymentID,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for pos, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, product_id, sku, name, unit_price, quantity)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, order.ID, pos, item.ProductID, item.SKU, item.Name, item.UnitPrice, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	addresses := map[domain.AddressKind]*domain.Address{
		domain.AddressShipping: order.ShippingAddress,
		domain.AddressBilling:  order.BillingAddress,
	}
	for kind, addr := range addresses {
		if addr == nil {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_addresses (order_id, kind, name, line1, line2, city, state, postal_code, country, phone)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			order.ID, kind, addr.Name, addr.Line1, addr.Line2, addr.City, addr.State,
			addr.PostalCode, addr.Country, addr.Phone,
		)
		if err != nil {
			return fmt.Errorf("insert %s address: %w", strings.ToLower(string(kind)), err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return m.loadOrder(ctx, "id", id)
}

func (m *MySQLAdapter) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return m.loadOrder(ctx, "order_number", orderNumber)
}

func (m *MySQLAdapter) loadOrder(ctx context.Context, column, value string) (*domain.Order, error) {
	var o domain.Order
	err := m.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+column+` = ?`, value).Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Email, &o.Status, &o.PaymentStatus, &o.Total,
		&o.Carrier, &o.TrackingNumber, &o.CheckoutSessionID, &o.PaymentID, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	if o.Items, err = m.loadItems(ctx, o.ID); err != nil {
		return nil, err
	}
	if o.ShippingAddress, err = m.loadAddress(ctx, o.ID, domain.AddressShipping); err != nil {
		return nil, err
	}
	if o.BillingAddress, err = m.loadAddress(ctx, o.ID, domain.AddressBilling); err != nil {
		return nil, err
	}
	return &o, nil
}

func (m *MySQLAdapter) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, product_id, sku, name, unit_price, quantity
		FROM order_items WHERE order_id = ? ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.SKU, &it.Name, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) loadAddress(ctx context.Context, orderID string, kind domain.AddressKind) (*domain.Address, error) {
	var a domain.Address
	err := m.db.QueryRowContext(ctx, `
		SELECT name, line1, line2, city, state, postal_code, country, phone
		FROM order_addresses WHERE order_id = ? AND kind = ?`, orderID, kind,
	).Scan(&a.Name, &a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.Country, &a.Phone)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query %s address: %w", strings.ToLower(string(kind)), err)
	}
	return &a, nil
}

// ApplyTransition compiles the transition into one guarded UPDATE, so concurrent
// deliveries for the same order serialize on the row and a stale transition
// simply matches nothing.
func (m *MySQLAdapter) ApplyTransition(ctx context.Context, orderID string, t domain.Transition, now time.Time) (bool, error) {
	query, args := transitionQuery(orderID, t, now)

	result, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("apply %s: %w", t.Name, err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func transitionQuery(orderID string, t domain.Transition, now time.Time) (string, []any) {
	var q strings.Builder
	args := []any{t.ToPayment, now}

	q.WriteString(`UPDATE orders SET payment_status = ?, updated_at = ?`)
	if t.To != "" && len(t.StatusFrom) > 0 {
		q.WriteString(`, status = CASE WHEN status IN (` + placeholders(len(t.StatusFrom)) + `) THEN ? ELSE status END`)
		for _, s := range t.StatusFrom {
			args = append(args, s)
		}
		args = append(args, t.To)
	}
	if t.PaymentID != "" {
		q.WriteString(`, payment_id = ?`)
		args = append(args, t.PaymentID)
	}

	q.WriteString(` WHERE id = ? AND payment_status IN (` + placeholders(len(t.FromPayment)) + `)`)
	args = append(args, orderID)
	for _, s := range t.FromPayment {
		args = append(args, s)
	}
	if len(t.Veto) > 0 {
		q.WriteString(` AND status NOT IN (` + placeholders(len(t.Veto)) + `)`)
		for _, s := range t.Veto {
			args = append(args, s)
		}
	}

	return q.String(), args
}

func (m *MySQLAdapter) UpdateOrder(ctx context.Context, orderID string, update domain.OrderUpdate, now time.Time) error {
	update, err := update.Normalize()
	if err != nil {
		return err
	}

	sets := []string{"updated_at = ?"}
	args := []any{now}

	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}
	if update.PaymentStatus != nil {
		sets = append(sets, "payment_status = ?")
		args = append(args, *update.PaymentStatus)
	}
	if update.TrackingNumber != nil {
		sets = append(sets, "tracking_number = ?")
		args = append(args, *update.TrackingNumber)
	}
	if update.Carrier != nil {
		sets = append(sets, "carrier = ?")
		args = append(args, *update.Carrier)
	}
	args = append(args, orderID)

	result, err := m.db.ExecContext(ctx, `UPDATE orders SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return m.ensureExists(ctx, orderID)
	}
	return nil
}

func (m *MySQLAdapter) AttachCheckoutSession(ctx context.Context, orderID, sessionID string, now time.Time) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET checkout_session_id = ?, updated_at = ? WHERE id = ?`,
		sessionID, now, orderID,
	)
	if err != nil {
		return fmt.Errorf("attach checkout session: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return m.ensureExists(ctx, orderID)
	}
	return nil
}

func (m *MySQLAdapter) ensureExists(ctx context.Context, orderID string) error {
	var one int
	err := m.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, orderID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("query order: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
