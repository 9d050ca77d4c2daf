package mysql

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	driver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/models"
	"storefront/repository"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, *orderRepository, *productRepository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return mock, &orderRepository{db: db}, &productRepository{db: db}
}

func TestCreateItemsCommits(t *testing.T) {
	mock, orders, _ := newMock(t)
	items := []models.OrderItem{
		{ID: "i1", ProductID: "p1", ProductName: "Product A", Quantity: 2, Price: decimal.RequireFromString("50")},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO order_items")
	prep.ExpectExec().
		WithArgs("i1", "o1", "p1", "Product A", 2, "50.00", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products SET stock").
		WithArgs(2, "p1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, orders.CreateItems(context.Background(), "o1", items))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateItemsRollsBackOnInsufficientStock(t *testing.T) {
	mock, orders, _ := newMock(t)
	items := []models.OrderItem{
		{ID: "i1", ProductID: "p1", ProductName: "Product A", Quantity: 20, Price: decimal.RequireFromString("50")},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO order_items")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products SET stock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := orders.CreateItems(context.Background(), "o1", items)
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusIsConditional(t *testing.T) {
	mock, orders, _ := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?")).
		WithArgs("processing", sqlmock.AnyArg(), "o1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs("processing", sqlmock.AnyArg(), "o1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, orders.UpdateStatus(context.Background(), "o1", models.StatusPending, models.StatusProcessing))
	err := orders.UpdateStatus(context.Background(), "o1", models.StatusPending, models.StatusProcessing)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrderNotFound(t *testing.T) {
	mock, orders, _ := newMock(t)

	mock.ExpectQuery("SELECT .* FROM orders WHERE id = ?").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := orders.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRevenue(t *testing.T) {
	mock, orders, _ := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(total), 0) FROM orders")).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("1180.50"))

	rev, err := orders.Revenue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1180.50", rev.StringFixed(2))
}

func TestProductDeleteIsSoft(t *testing.T) {
	mock, _, products := newMock(t)

	mock.ExpectExec("UPDATE products SET deleted_at").
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products SET deleted_at").
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, products.Delete(context.Background(), "p1"))
	assert.ErrorIs(t, products.Delete(context.Background(), "p1"), repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDsSkipsEmptyInput(t *testing.T) {
	mock, _, products := newMock(t)

	found, err := products.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_sale`, escapeLike("50% off_sale"))
}

func TestCreateOrderDuplicatePayment(t *testing.T) {
	mock, orders, _ := newMock(t)
	now := time.Now()
	o := &models.Order{
		ID: "o2", UserID: "u1", Total: decimal.RequireFromString("130"), Status: models.StatusPending,
		PaymentMethod: models.PaymentCard, PaymentIntentID: "pi_1", CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO orders").
		WillReturnError(&driver.MySQLError{Number: 1062, Message: "Duplicate entry 'pi_1' for key 'payment_intent_id'"})

	err := orders.Create(context.Background(), o)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectExec("INSERT INTO orders").WillReturnError(assert.AnError)
	err = orders.Create(context.Background(), o)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, repository.ErrDuplicate)
}
