package client

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"restopos/internal/models"
)

var (
	ErrNoTableSelected = errors.New("no table selected")
	ErrNoActiveOrder   = errors.New("selected table has no active order")
)

// MenuFilter is the menu-browsing view's current filter.
type MenuFilter struct {
	CollectionID int64
	Search       string
}

// Snapshot is a copy of the view state handed to observers.
type Snapshot struct {
	SelectedTable *models.Table
	ActiveOrder   *models.OrderWithItems
	Menu          MenuFilter
}

// ViewState keeps the selected table and its active order consistent for
// every view. The server is the only source of truth: after any mutation the
// active order is fetched again before the call returns.
type ViewState struct {
	client *Client

	// opMu serializes operations; mu guards the fields below.
	opMu      sync.Mutex
	mu        sync.RWMutex
	selected  *models.Table
	active    *models.OrderWithItems
	menu      MenuFilter
	observers map[int]func(Snapshot)
	nextID    int
}

func NewViewState(c *Client) *ViewState {
	return &ViewState{client: c, observers: make(map[int]func(Snapshot))}
}

// Subscribe registers fn for every state change and returns its unsubscribe.
func (v *ViewState) Subscribe(fn func(Snapshot)) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.observers[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.observers, id)
		v.mu.Unlock()
	}
}

func (v *ViewState) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshotLocked()
}

func (v *ViewState) snapshotLocked() Snapshot {
	snap := Snapshot{Menu: v.menu}
	if v.selected != nil {
		t := *v.selected
		snap.SelectedTable = &t
	}
	if v.active != nil {
		o := *v.active
		o.Items = append([]models.OrderItem(nil), v.active.Items...)
		snap.ActiveOrder = &o
	}
	return snap
}

func (v *ViewState) notify() {
	v.mu.RLock()
	snap := v.snapshotLocked()
	observers := make([]func(Snapshot), 0, len(v.observers))
	for _, fn := range v.observers {
		observers = append(observers, fn)
	}
	v.mu.RUnlock()

	for _, fn := range observers {
		fn(snap)
	}
}

// SelectTable makes table the current one and loads its active order.
func (v *ViewState) SelectTable(ctx context.Context, table models.Table) error {
	v.opMu.Lock()
	defer v.opMu.Unlock()

	v.mu.Lock()
	v.selected = &table
	v.active = nil
	v.mu.Unlock()

	return v.refresh(ctx)
}

func (v *ViewState) ClearSelection() {
	v.opMu.Lock()
	defer v.opMu.Unlock()

	v.mu.Lock()
	v.selected = nil
	v.active = nil
	v.mu.Unlock()
	v.notify()
}

// Refresh refetches the selected table's active order.
func (v *ViewState) Refresh(ctx context.Context) error {
	v.opMu.Lock()
	defer v.opMu.Unlock()
	return v.refresh(ctx)
}

func (v *ViewState) refresh(ctx context.Context) error {
	v.mu.RLock()
	selected := v.selected
	v.mu.RUnlock()

	var active *models.OrderWithItems
	if selected != nil {
		var err error
		active, err = v.client.GetActiveOrder(ctx, selected.ID)
		if err != nil {
			return err
		}
	}

	v.mu.Lock()
	v.active = active
	v.mu.Unlock()
	v.notify()
	return nil
}

// mutate runs op and always refetches afterwards, so a failed mutation
// still leaves the state matching the server. op's error wins.
func (v *ViewState) mutate(ctx context.Context, op func() error) error {
	opErr := op()
	refreshErr := v.refresh(ctx)
	if opErr != nil {
		return opErr
	}
	return refreshErr
}

func (v *ViewState) current() (*models.Table, *models.OrderWithItems) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.selected, v.active
}

// AddItem adds a line to the selected table's order, opening one first when
// the table is free.
func (v *ViewState) AddItem(ctx context.Context, menuItemID, quantity int64, note *string) error {
	v.opMu.Lock()
	defer v.opMu.Unlock()

	table, active := v.current()
	if table == nil {
		return ErrNoTableSelected
	}

	return v.mutate(ctx, func() error {
		orderID := int64(0)
		if active != nil {
			orderID = active.ID
		} else {
			order, err := v.client.OpenOrder(ctx, table.ID)
			switch {
			case err == nil:
				orderID = order.ID
			case StatusOf(err) == http.StatusConflict:
				// another terminal opened it first
				existing, getErr := v.client.GetActiveOrder(ctx, table.ID)
				if getErr != nil {
					return getErr
				}
				if existing == nil {
					return err
				}
				orderID = existing.ID
			default:
				return err
			}
		}
		_, err := v.client.AddItem(ctx, orderID, menuItemID, quantity, note)
		return err
	})
}

func (v *ViewState) UpdateItem(ctx context.Context, itemID int64, patch models.LineItemPatch) error {
	v.opMu.Lock()
	defer v.opMu.Unlock()

	if _, active := v.current(); active == nil {
		return ErrNoActiveOrder
	}
	return v.mutate(ctx, func() error {
		_, err := v.client.UpdateItem(ctx, itemID, patch)
		return err
	})
}

func (v *ViewState) RemoveItem(ctx context.Context, itemID int64) error {
	v.opMu.Lock()
	defer v.opMu.Unlock()

	if _, active := v.current(); active == nil {
		return ErrNoActiveOrder
	}
	return v.mutate(ctx, func() error {
		_, err := v.client.RemoveItem(ctx, itemID)
		return err
	})
}

// Complete checks out the whole active order and returns its bill.
func (v *ViewState) Complete(ctx context.Context, paymentMethod string, discount int64) (*models.Bill, error) {
	v.opMu.Lock()
	defer v.opMu.Unlock()

	_, active := v.current()
	if active == nil {
		return nil, ErrNoActiveOrder
	}

	var bill *models.Bill
	err := v.mutate(ctx, func() error {
		res, err := v.client.CompleteOrder(ctx, active.ID, paymentMethod, discount)
		if err != nil {
			return err
		}
		bill = res.Bill
		return nil
	})
	return bill, err
}

// PayItems settles some lines of the active order.
func (v *ViewState) PayItems(ctx context.Context, itemIDs []int64, paymentMethod string) (*models.Bill, error) {
	v.opMu.Lock()
	defer v.opMu.Unlock()

	_, active := v.current()
	if active == nil {
		return nil, ErrNoActiveOrder
	}

	var bill *models.Bill
	err := v.mutate(ctx, func() error {
		res, err := v.client.PayItems(ctx, active.ID, itemIDs, paymentMethod)
		if err != nil {
			return err
		}
		bill = res.Bill
		return nil
	})
	return bill, err
}

func (v *ViewState) Cancel(ctx context.Context) error {
	v.opMu.Lock()
	defer v.opMu.Unlock()

	_, active := v.current()
	if active == nil {
		return ErrNoActiveOrder
	}
	return v.mutate(ctx, func() error {
		_, err := v.client.CancelOrder(ctx, active.ID)
		return err
	})
}

func (v *ViewState) SetMenuFilter(filter MenuFilter) {
	v.mu.Lock()
	v.menu = filter
	v.mu.Unlock()
	v.notify()
}

// MenuItems lists the available menu items matching the current filter.
func (v *ViewState) MenuItems(ctx context.Context) ([]models.MenuItem, error) {
	v.mu.RLock()
	f := v.menu
	v.mu.RUnlock()

	return v.client.ListMenuItems(ctx, models.MenuFilter{
		CollectionID:  f.CollectionID,
		Search:        f.Search,
		AvailableOnly: true,
	})
}
