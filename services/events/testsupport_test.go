package events

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"gamecore-events/pkg/config"
	"gamecore-events/services/testutil"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeUserStore is an in-memory UserStore. All methods are safe for the
// concurrent calls the worker pool makes.
type fakeUserStore struct {
	mu         sync.Mutex
	users      map[string]*User
	capacity   map[string]int
	activeTask map[string]bool
	getErr     map[string]error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:      make(map[string]*User),
		capacity:   make(map[string]int),
		activeTask: make(map[string]bool),
		getErr:     make(map[string]error),
	}
}

func (f *fakeUserStore) add(u User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := u
	f.users[u.ID] = &cp
}

func (f *fakeUserStore) coins(id string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id].Coins
}

func (f *fakeUserStore) GetUser(ctx context.Context, id string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) UpdateBalance(ctx context.Context, id string, newBalance int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Coins = newBalance
	return nil
}

func (f *fakeUserStore) AllUsers(ctx context.Context) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUserStore) UsersByLevel(ctx context.Context, levels []int) ([]User, error) {
	all, _ := f.AllUsers(ctx)
	want := make(map[int]struct{}, len(levels))
	for _, l := range levels {
		want[l] = struct{}{}
	}
	out := make([]User, 0)
	for _, u := range all {
		if _, ok := want[u.Level]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserStore) UsersWithActiveTask(ctx context.Context) ([]User, error) {
	all, _ := f.AllUsers(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]User, 0)
	for _, u := range all {
		if f.activeTask[u.ID] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserStore) UsersActiveSince(ctx context.Context, since time.Time) ([]User, error) {
	all, _ := f.AllUsers(ctx)
	out := make([]User, 0)
	for _, u := range all {
		if !u.LastActiveAt.Before(since) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserStore) InventoryCapacity(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	free, ok := f.capacity[userID]
	if !ok {
		return 20, nil
	}
	return free, nil
}

type createdItem struct {
	OwnerID  string
	ItemType string
	Props    map[string]any
}

// fakeItemStore rejects item types missing from its catalog the way the
// real store does.
type fakeItemStore struct {
	mu      sync.Mutex
	catalog map[string]struct{}
	created []createdItem
}

func newFakeItemStore(types ...string) *fakeItemStore {
	catalog := make(map[string]struct{}, len(types))
	for _, t := range types {
		catalog[t] = struct{}{}
	}
	return &fakeItemStore{catalog: catalog}
}

func (f *fakeItemStore) CreateItem(ctx context.Context, ownerID, itemType string, properties map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.catalog[itemType]; !ok {
		return ErrUnknownItemType
	}
	f.created = append(f.created, createdItem{OwnerID: ownerID, ItemType: itemType, Props: properties})
	return nil
}

func (f *fakeItemStore) CountAvailableItems(ctx context.Context, ownerID, itemType string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, item := range f.created {
		if item.OwnerID == ownerID && item.ItemType == itemType {
			n++
		}
	}
	return n, nil
}

func (f *fakeItemStore) itemsFor(ownerID string) []createdItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]createdItem, 0)
	for _, item := range f.created {
		if item.OwnerID == ownerID {
			out = append(out, item)
		}
	}
	return out
}

type timelineEntry struct {
	TaskID string
	Kind   string
}

type fakeTaskStore struct {
	mu       sync.Mutex
	tasks    map[string]*TaskRef
	timeline []timelineEntry
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[string]*TaskRef)}
}

func (f *fakeTaskStore) add(t TaskRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := t
	f.tasks[t.ID] = &cp
}

func (f *fakeTaskStore) frozen(taskID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[taskID].Frozen
}

func (f *fakeTaskStore) ActiveTasksFor(ctx context.Context, userID string) ([]TaskRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]TaskRef, 0)
	for _, t := range f.tasks {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTaskStore) SetFrozen(ctx context.Context, taskID string, frozen bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	t.Frozen = frozen
	return nil
}

func (f *fakeTaskStore) RecordTimelineEvent(ctx context.Context, taskID, kind string, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeline = append(f.timeline, timelineEntry{TaskID: taskID, Kind: kind})
	return nil
}

type sentNotification struct {
	UserID string
	Kind   string
	Title  string
}

type fakeNotifySink struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifySink) Notify(ctx context.Context, userID, kind, title, message string, extra map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{UserID: userID, Kind: kind, Title: title})
	return nil
}

func (f *fakeNotifySink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// testEngine bundles a Service wired against in-memory fakes and an
// in-memory database.
type testEngine struct {
	svc   *Service
	users *fakeUserStore
	items *fakeItemStore
	tasks *fakeTaskStore
	sink  *fakeNotifySink
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	db := testutil.NewTestDB(t, Models()...)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	users := newFakeUserStore()
	items := newFakeItemStore("snow_shovel", "golden_pickaxe")
	tasks := newFakeTaskStore()
	sink := &fakeNotifySink{}

	svc := New(db, node, config.Defaults(), users, items, tasks, sink)
	return &testEngine{svc: svc, users: users, items: items, tasks: tasks, sink: sink}
}

func (e *testEngine) mustCreateDefinition(t *testing.T, def EventDefinition) *EventDefinition {
	t.Helper()
	if def.Name == "" {
		def.Name = "test-event-" + e.svc.node.Generate().String()
	}
	if def.Category == "" {
		def.Category = CategoryWeather
	}
	if def.Title == "" {
		def.Title = def.Name
	}
	if def.ScheduleType == "" {
		def.ScheduleType = ScheduleManual
	}
	def.IsActive = true
	if err := e.svc.CreateDefinition(context.Background(), &def); err != nil {
		t.Fatalf("create definition: %v", err)
	}
	return &def
}

func (e *testEngine) mustCreateEffect(t *testing.T, effect EventEffect) *EventEffect {
	t.Helper()
	effect.IsActive = true
	if effect.Priority == 0 {
		effect.Priority = 100
	}
	if err := e.svc.CreateEffect(context.Background(), &effect); err != nil {
		t.Fatalf("create effect: %v", err)
	}
	return &effect
}
