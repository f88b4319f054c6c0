package purchasing

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sort"
	"sync"
	"testing"

	"obra-backend/internal/apperr"
	"obra-backend/internal/logger"
	"obra-backend/internal/models"
	"obra-backend/internal/testdb"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// budget: 100 bolsas of cement and 10 m3 of sand
func setup(t *testing.T) (*gorm.DB, *Service, models.Project, models.MasterInput, models.MasterInput) {
	t.Helper()
	db := testdb.Open(t)
	p := models.Project{Name: "Torre Zona 10"}
	cement := models.MasterInput{Category: models.CategoryMaterial, Description: "Cemento", PurchaseUnit: "bolsa"}
	sand := models.MasterInput{Category: models.CategoryMaterial, Description: "Arena de río", PurchaseUnit: "m3"}
	for _, v := range []any{&p, &cement, &sand} {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	item := models.BudgetLineItem{ProjectID: p.ID, Description: "Fundición de losa", Unit: "m3", Quantity: 10, Composition: []models.CompositionRow{
		{MasterInputID: cement.ID, Yield: 10, WasteFactor: 1.05, AppliedPrice: 82},
		{MasterInputID: sand.ID, Yield: 1, WasteFactor: 1.05, AppliedPrice: 150},
	}}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed line item: %v", err)
	}
	return db, NewService(db, logger.NewNop(), NewLocalLocker()), p, cement, sand
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestCreateOrderWithinBudget(t *testing.T) {
	db, svc, p, cement, sand := setup(t)

	order, err := svc.CreateOrder(context.Background(), OrderRequest{ProjectID: p.ID, Lines: []LineRequest{
		{InputID: cement.ID, Quantity: 60, UnitPrice: 82},
		{InputID: sand.ID, Quantity: 10, UnitPrice: 150},
		{InputID: cement.ID, Quantity: 40, UnitPrice: 80},
	}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.Status != models.OrderPending {
		t.Fatalf("expected pendiente got %s", order.Status)
	}
	want := 60*82.0 + 10*150.0 + 40*80.0
	if math.Abs(order.Total-want) > 1e-9 {
		t.Fatalf("expected total %v got %v", want, order.Total)
	}
	if n := countRows(t, db, &models.PurchaseOrderLine{}); n != 3 {
		t.Fatalf("expected 3 lines got %d", n)
	}
	sum, err := svc.CheckTotal(context.Background(), order.ID)
	if err != nil || math.Abs(sum-want) > 1e-9 {
		t.Fatalf("check total: %v (%v)", sum, err)
	}
}

func TestCreateOrderOverBudgetRejectsWholeOrder(t *testing.T) {
	db, svc, p, cement, sand := setup(t)

	// the second cement line only fails because of the first one
	_, err := svc.CreateOrder(context.Background(), OrderRequest{ProjectID: p.ID, Lines: []LineRequest{
		{InputID: sand.ID, Quantity: 5, UnitPrice: 150},
		{InputID: cement.ID, Quantity: 70, UnitPrice: 82},
		{InputID: cement.ID, Quantity: 31, UnitPrice: 82},
	}})
	var over *apperr.OverBudgetError
	if !errors.As(err, &over) {
		t.Fatalf("expected OverBudgetError got %v", err)
	}
	if over.InputID != cement.ID.String() || over.Requested != 31 || math.Abs(over.Available-30) > 1e-9 {
		t.Fatalf("unexpected error detail %+v", over)
	}
	if n := countRows(t, db, &models.PurchaseOrder{}); n != 0 {
		t.Fatalf("expected no orders, got %d", n)
	}
	if n := countRows(t, db, &models.PurchaseOrderLine{}); n != 0 {
		t.Fatalf("expected no lines, got %d", n)
	}
}

func TestCreateOrderCountsEarlierOrders(t *testing.T) {
	_, svc, p, cement, _ := setup(t)
	ctx := context.Background()

	first, err := svc.CreateOrder(ctx, OrderRequest{ProjectID: p.ID, Lines: []LineRequest{{InputID: cement.ID, Quantity: 90, UnitPrice: 82}}})
	if err != nil {
		t.Fatalf("first order: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, first.ID, models.OrderRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// rejected orders still count against the budget
	_, err = svc.CreateOrder(ctx, OrderRequest{ProjectID: p.ID, Lines: []LineRequest{{InputID: cement.ID, Quantity: 11, UnitPrice: 82}}})
	var over *apperr.OverBudgetError
	if !errors.As(err, &over) {
		t.Fatalf("expected OverBudgetError got %v", err)
	}
	if _, err := svc.CreateOrder(ctx, OrderRequest{ProjectID: p.ID, Lines: []LineRequest{{InputID: cement.ID, Quantity: 10, UnitPrice: 82}}}); err != nil {
		t.Fatalf("exact remaining should be accepted: %v", err)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	_, svc, p, cement, _ := setup(t)
	ctx := context.Background()

	if _, err := svc.CreateOrder(ctx, OrderRequest{ProjectID: p.ID}); !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("expected ErrEmptyOrder got %v", err)
	}
	if _, err := svc.CreateOrder(ctx, OrderRequest{ProjectID: p.ID, Lines: []LineRequest{{InputID: cement.ID, Quantity: 0}}}); !errors.Is(err, ErrInvalidLine) {
		t.Fatalf("expected ErrInvalidLine got %v", err)
	}

	var nf *apperr.NotFoundError
	_, err := svc.CreateOrder(ctx, OrderRequest{ProjectID: uuid.New(), Lines: []LineRequest{{InputID: cement.ID, Quantity: 1}}})
	if !errors.As(err, &nf) || nf.Entity != "project" {
		t.Fatalf("expected project not found got %v", err)
	}
	_, err = svc.CreateOrder(ctx, OrderRequest{ProjectID: p.ID, Lines: []LineRequest{{InputID: uuid.New(), Quantity: 1}}})
	if !errors.As(err, &nf) || nf.Entity != "input" {
		t.Fatalf("expected input not found got %v", err)
	}
}

func TestConcurrentOrdersRespectBudget(t *testing.T) {
	db, svc, p, cement, _ := setup(t)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateOrder(context.Background(), OrderRequest{ProjectID: p.ID, Lines: []LineRequest{{InputID: cement.ID, Quantity: 60, UnitPrice: 82}}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, rejected int
	for err := range errs {
		var over *apperr.OverBudgetError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &over):
			rejected++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 || rejected != 1 {
		t.Fatalf("expected one accepted and one rejected, got %d/%d", ok, rejected)
	}
	if n := countRows(t, db, &models.PurchaseOrder{}); n != 1 {
		t.Fatalf("expected one order, got %d", n)
	}
}

type recordingLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	events []string
	failOn string
}

func newRecordingLocker() *recordingLocker {
	return &recordingLocker{held: map[string]bool{}}
}

func (l *recordingLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if key == l.failOn {
		return nil, ErrLockNotObtained
	}
	l.held[key] = true
	l.events = append(l.events, "acquire "+key)
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.events = append(l.events, "release "+key)
	}, nil
}

func (l *recordingLocker) heldKeys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]string, 0, len(l.held))
	for k := range l.held {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestCreateOrderHoldsSortedInputLocks(t *testing.T) {
	db, _, p, cement, sand := setup(t)
	locker := newRecordingLocker()
	svc := NewService(db, logger.NewNop(), locker)

	var heldAtWrite []string
	err := db.Callback().Create().After("gorm:create").Register("test:held_locks", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "ordenes_compra" {
			heldAtWrite = locker.heldKeys()
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	// cement twice: one lock per distinct input
	_, err = svc.CreateOrder(context.Background(), OrderRequest{ProjectID: p.ID, Lines: []LineRequest{
		{InputID: sand.ID, Quantity: 2, UnitPrice: 150},
		{InputID: cement.ID, Quantity: 10, UnitPrice: 82},
		{InputID: cement.ID, Quantity: 5, UnitPrice: 82},
	}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	keys := []string{lockKey(p.ID, cement.ID), lockKey(p.ID, sand.ID)}
	sort.Strings(keys)
	if !reflect.DeepEqual(heldAtWrite, keys) {
		t.Fatalf("expected %v held while writing the order, got %v", keys, heldAtWrite)
	}
	want := []string{"acquire " + keys[0], "acquire " + keys[1], "release " + keys[1], "release " + keys[0]}
	if !reflect.DeepEqual(locker.events, want) {
		t.Fatalf("expected lock events %v got %v", want, locker.events)
	}
	if held := locker.heldKeys(); len(held) != 0 {
		t.Fatalf("locks still held after return: %v", held)
	}
}

func TestCreateOrderLockFailureWritesNothing(t *testing.T) {
	db, _, p, cement, sand := setup(t)
	keys := []string{lockKey(p.ID, cement.ID), lockKey(p.ID, sand.ID)}
	sort.Strings(keys)

	locker := newRecordingLocker()
	locker.failOn = keys[1]
	svc := NewService(db, logger.NewNop(), locker)

	_, err := svc.CreateOrder(context.Background(), OrderRequest{ProjectID: p.ID, Lines: []LineRequest{
		{InputID: cement.ID, Quantity: 1, UnitPrice: 82},
		{InputID: sand.ID, Quantity: 1, UnitPrice: 150},
	}})
	if !errors.Is(err, ErrLockNotObtained) {
		t.Fatalf("expected ErrLockNotObtained got %v", err)
	}
	if held := locker.heldKeys(); len(held) != 0 {
		t.Fatalf("first lock not released: %v", held)
	}
	if n := countRows(t, db, &models.PurchaseOrder{}); n != 0 {
		t.Fatalf("expected no orders, got %d", n)
	}
}

func TestUpdateStatusDeliveryReceivesStock(t *testing.T) {
	db, svc, p, cement, sand := setup(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, OrderRequest{ProjectID: p.ID, Lines: []LineRequest{
		{InputID: cement.ID, Quantity: 50, UnitPrice: 82},
		{InputID: sand.ID, Quantity: 4, UnitPrice: 150},
	}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	pending, err := svc.ListPending(ctx, &p.ID)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected 1 pending order, got %d (%v)", len(pending), err)
	}

	if _, err := svc.UpdateStatus(ctx, order.ID, models.OrderApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	delivered, err := svc.UpdateStatus(ctx, order.ID, models.OrderDelivered)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered.Status != models.OrderDelivered {
		t.Fatalf("expected entregada got %s", delivered.Status)
	}

	var movements []models.WarehouseMovement
	if err := db.Where("project_id = ?", p.ID).Find(&movements).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	if len(movements) != 2 {
		t.Fatalf("expected 2 ENTRADA movements got %d", len(movements))
	}
	for _, m := range movements {
		if m.Direction != models.MovementIn {
			t.Fatalf("expected ENTRADA got %s", m.Direction)
		}
	}

	if _, err := svc.UpdateStatus(ctx, order.ID, models.OrderRejected); !errors.Is(err, ErrAlreadyDelivered) {
		t.Fatalf("expected ErrAlreadyDelivered got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, order.ID, "cancelada"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus got %v", err)
	}

	// create + approve + deliver
	if n := countRows(t, db, &models.AuditLog{}); n != 3 {
		t.Fatalf("expected 3 audit entries got %d", n)
	}
	pending, _ = svc.ListPending(ctx, nil)
	if len(pending) != 0 {
		t.Fatalf("expected no pending orders, got %d", len(pending))
	}
}

func TestCheckTotalDetectsDrift(t *testing.T) {
	db, svc, p, cement, _ := setup(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, OrderRequest{ProjectID: p.ID, Lines: []LineRequest{{InputID: cement.ID, Quantity: 2, UnitPrice: 82}}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.Model(&models.PurchaseOrder{}).Where("id = ?", order.ID).Update("total", 999).Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if _, err := svc.CheckTotal(ctx, order.ID); !errors.Is(err, ErrTotalMismatch) {
		t.Fatalf("expected ErrTotalMismatch got %v", err)
	}

	// legacy lines without a subtotal fall back to quantity × price
	if err := db.Model(&models.PurchaseOrderLine{}).Where("order_id = ?", order.ID).Update("subtotal", nil).Error; err != nil {
		t.Fatalf("clear subtotal: %v", err)
	}
	if err := db.Model(&models.PurchaseOrder{}).Where("id = ?", order.ID).Update("total", 164).Error; err != nil {
		t.Fatalf("restore total: %v", err)
	}
	if _, err := svc.CheckTotal(ctx, order.ID); err != nil {
		t.Fatalf("expected consistent total, got %v", err)
	}
}
