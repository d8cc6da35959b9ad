package suggest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pantry-chef/internal/core/pantry"
	"pantry-chef/internal/core/suggest/cache"
	"pantry-chef/internal/infrastructure/config"
	"pantry-chef/internal/pkg/common"
)

// fakeModel 固定回覆的模型替身
type fakeModel struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (f *fakeModel) Chat(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeModel) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Model: config.ModelConfig{
			SuggestTimeout: 10 * time.Second,
			DetailTimeout:  10 * time.Second,
		},
		Cache: config.CacheConfig{
			Enabled:         true,
			Backend:         "memory",
			MaxSize:         100,
			FreshnessWindow: 24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Media: config.MediaConfig{
			BasePath:     "/media/recipes",
			DefaultImage: "default.jpg",
		},
	}
}

func newTestService(t *testing.T, model *fakeModel) (*Service, *cache.MemoryStore) {
	t.Helper()
	cfg := testConfig()
	store := cache.NewMemoryStore(cfg.Cache)
	t.Cleanup(func() { store.Close() })
	svc := NewService(cfg, model, store, NewCatalog(cfg.Media), pantry.NewMemoryStore())
	return svc, store
}

const twoDishResponse = `Here you go:
{"name": "Omelette", "short_description": "Fluffy eggs", "cuisine": "French", "difficulty": "easy", "image_hint": "omelette"}
{"name": "Pancakes", "short_description": "Stacked and sweet", "cuisine": "American", "difficulty": "easy", "image_hint": "pancakes"}`

func TestSuggestCallsModelThenCaches(t *testing.T) {
	model := &fakeModel{response: twoDishResponse}
	svc, _ := newTestService(t, model)
	ctx := context.Background()

	dishes, err := svc.Suggest(ctx, []string{"Egg", "milk "})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(dishes) != 2 {
		t.Fatalf("len(dishes) = %d, want 2", len(dishes))
	}
	if model.calls != 1 {
		t.Fatalf("model calls = %d, want 1", model.calls)
	}
	if dishes[0].Image != "/media/recipes/Omelette.jpg" {
		t.Fatalf("dishes[0].Image = %q", dishes[0].Image)
	}
	if dishes[1].Image != "/media/recipes/Pancakes.jpg" {
		t.Fatalf("dishes[1].Image = %q", dishes[1].Image)
	}

	// 第二次相同食材（不同大小寫與順序）應命中快取，不再呼叫模型
	again, err := svc.Suggest(ctx, []string{"MILK", "egg"})
	if err != nil {
		t.Fatalf("second Suggest: %v", err)
	}
	if model.calls != 1 {
		t.Fatalf("model calls after cache hit = %d, want 1", model.calls)
	}
	if len(again) != 2 || again[0].Name != "Omelette" || again[0].Image != dishes[0].Image {
		t.Fatalf("cached result differs: %+v", again)
	}
}

func TestSuggestPromptContainsNormalizedIngredients(t *testing.T) {
	model := &fakeModel{response: twoDishResponse}
	svc, _ := newTestService(t, model)

	if _, err := svc.Suggest(context.Background(), []string{"Milk", "EGG"}); err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(model.prompts) != 1 {
		t.Fatalf("prompts = %d, want 1", len(model.prompts))
	}
	if !strings.Contains(model.prompts[0], "egg, milk") {
		t.Fatalf("prompt missing normalized ingredient list: %q", model.prompts[0])
	}
}

func TestSuggestEmptyPantry(t *testing.T) {
	model := &fakeModel{response: twoDishResponse}
	svc, _ := newTestService(t, model)

	_, err := svc.Suggest(context.Background(), []string{"  ", ""})
	if !errors.Is(err, common.ErrEmptyPantry) {
		t.Fatalf("err = %v, want ErrEmptyPantry", err)
	}
	if model.calls != 0 {
		t.Fatalf("model called %d times on empty pantry, want 0", model.calls)
	}
}

func TestSuggestModelFailure(t *testing.T) {
	modelErr := common.WrapError(common.ErrModelUnavailable, errors.New("connection refused"))
	model := &fakeModel{err: modelErr}
	svc, _ := newTestService(t, model)

	_, err := svc.Suggest(context.Background(), []string{"egg"})
	if !common.IsCode(err, common.ErrCodeModelUnavailable) {
		t.Fatalf("err = %v, want MODEL_UNAVAILABLE", err)
	}
}

func TestSuggestUnparseableResponseIsEmptySuccess(t *testing.T) {
	model := &fakeModel{response: "Sorry, I cannot help with that."}
	svc, _ := newTestService(t, model)

	dishes, err := svc.Suggest(context.Background(), []string{"egg"})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(dishes) != 0 {
		t.Fatalf("len(dishes) = %d, want 0", len(dishes))
	}

	// 空結果一樣會寫入快取，下一次不再打模型
	if _, err := svc.Suggest(context.Background(), []string{"egg"}); err != nil {
		t.Fatalf("second Suggest: %v", err)
	}
	if model.calls != 1 {
		t.Fatalf("model calls = %d, want 1", model.calls)
	}
}

// failingStore 查詢一律失敗的快取替身，模擬後端故障
type failingStore struct {
	getErr error
	puts   int
}

func (s *failingStore) Get(ctx context.Context, fingerprint string) (*cache.Entry, error) {
	return nil, s.getErr
}

func (s *failingStore) Put(ctx context.Context, fingerprint string, payload []common.Dish) (*cache.Entry, error) {
	s.puts++
	return &cache.Entry{Fingerprint: fingerprint, Payload: payload, CreatedAt: time.Now()}, nil
}

func (s *failingStore) Close() error { return nil }

func TestSuggestCacheFailureFallsThroughToModel(t *testing.T) {
	model := &fakeModel{response: twoDishResponse}
	cfg := testConfig()
	store := &failingStore{getErr: errors.New("redis: connection refused")}
	svc := NewService(cfg, model, store, NewCatalog(cfg.Media), pantry.NewMemoryStore())

	dishes, err := svc.Suggest(context.Background(), []string{"egg"})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(dishes) != 2 {
		t.Fatalf("len(dishes) = %d, want 2", len(dishes))
	}
	if model.calls != 1 {
		t.Fatalf("model calls = %d, want 1", model.calls)
	}
	if store.puts != 1 {
		t.Fatalf("cache puts = %d, want 1", store.puts)
	}
}

func TestSuggestWithoutCache(t *testing.T) {
	model := &fakeModel{response: twoDishResponse}
	cfg := testConfig()
	svc := NewService(cfg, model, nil, NewCatalog(cfg.Media), pantry.NewMemoryStore())
	ctx := context.Background()

	if _, err := svc.Suggest(ctx, []string{"egg"}); err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if _, err := svc.Suggest(ctx, []string{"egg"}); err != nil {
		t.Fatalf("second Suggest: %v", err)
	}
	if model.calls != 2 {
		t.Fatalf("model calls = %d, want 2 without cache", model.calls)
	}
}

func TestSuggestForUser(t *testing.T) {
	model := &fakeModel{response: twoDishResponse}
	cfg := testConfig()
	pantryStore := pantry.NewMemoryStore()
	svc := NewService(cfg, model, nil, NewCatalog(cfg.Media), pantryStore)
	ctx := context.Background()

	_, err := svc.SuggestForUser(ctx, "alice")
	if !errors.Is(err, common.ErrNoPantry) {
		t.Fatalf("err = %v, want ErrNoPantry", err)
	}

	pantryStore.Create(ctx, "alice")
	_, err = svc.SuggestForUser(ctx, "alice")
	if !errors.Is(err, common.ErrEmptyPantry) {
		t.Fatalf("err = %v, want ErrEmptyPantry for empty pantry", err)
	}

	if err := pantryStore.Add(ctx, "alice", "Egg"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	dishes, err := svc.SuggestForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("SuggestForUser: %v", err)
	}
	if len(dishes) != 2 {
		t.Fatalf("len(dishes) = %d, want 2", len(dishes))
	}
}

const detailResponse = `{"name": "Omelette", "ingredients": [{"name": "egg", "amount": "3", "unit": "pcs"}], "instructions": [{"step": "Whisk the eggs", "time_minutes": 2}, {"step": "Cook gently"}], "time_minutes": 10}`

func TestDetailParsesCleanResponse(t *testing.T) {
	model := &fakeModel{response: detailResponse}
	svc, _ := newTestService(t, model)

	detail, err := svc.Detail(context.Background(), "Omelette")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if detail.Name != "Omelette" {
		t.Fatalf("Name = %q", detail.Name)
	}
	if detail.TimeMinutes != 10 {
		t.Fatalf("TimeMinutes = %d, want 10", detail.TimeMinutes)
	}
	if len(detail.Ingredients) != 1 || detail.Ingredients[0].Name != "egg" {
		t.Fatalf("Ingredients = %+v", detail.Ingredients)
	}
	if len(detail.Instructions) != 2 {
		t.Fatalf("Instructions = %+v", detail.Instructions)
	}
	if detail.Instructions[0].TimeMinutes != 2 || detail.Instructions[1].TimeMinutes != 0 {
		t.Fatalf("step minutes = %d/%d", detail.Instructions[0].TimeMinutes, detail.Instructions[1].TimeMinutes)
	}
	if detail.Image != "/media/recipes/Omelette.jpg" {
		t.Fatalf("Image = %q", detail.Image)
	}
}

func TestDetailStripsCodeFences(t *testing.T) {
	model := &fakeModel{response: "```json\n" + detailResponse + "\n```"}
	svc, _ := newTestService(t, model)

	detail, err := svc.Detail(context.Background(), "Omelette")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if detail.TimeMinutes != 10 {
		t.Fatalf("TimeMinutes = %d, want 10", detail.TimeMinutes)
	}
}

func TestDetailUnescapeRetry(t *testing.T) {
	escaped := strings.NewReplacer(`"`, `\"`).Replace(detailResponse)
	model := &fakeModel{response: escaped}
	svc, _ := newTestService(t, model)

	detail, err := svc.Detail(context.Background(), "Omelette")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if detail.Name != "Omelette" || detail.TimeMinutes != 10 {
		t.Fatalf("unexpected detail: %+v", detail)
	}
}

func TestDetailFloatAndStringMinutes(t *testing.T) {
	model := &fakeModel{response: `{"name": "Stew", "instructions": [{"step": "Simmer", "time_minutes": 12.5}], "time_minutes": 45.0}`}
	svc, _ := newTestService(t, model)

	detail, err := svc.Detail(context.Background(), "Stew")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if detail.TimeMinutes != 45 {
		t.Fatalf("TimeMinutes = %d, want 45", detail.TimeMinutes)
	}
	if detail.Instructions[0].TimeMinutes != 12 {
		t.Fatalf("step minutes = %d, want 12", detail.Instructions[0].TimeMinutes)
	}
}

func TestDetailRepairsUnquotedKeys(t *testing.T) {
	model := &fakeModel{response: `{name: "Beef Stew", instructions: [{step: "Simmer", time_minutes: 90}], time_minutes: 120}`}
	svc, _ := newTestService(t, model)

	detail, err := svc.Detail(context.Background(), "Beef Stew")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if detail.Name != "Beef Stew" || detail.TimeMinutes != 120 {
		t.Fatalf("unexpected detail: %+v", detail)
	}
}

func TestDetailNameFallback(t *testing.T) {
	model := &fakeModel{response: `{"ingredients": [], "instructions": [], "time_minutes": 5}`}
	svc, _ := newTestService(t, model)

	detail, err := svc.Detail(context.Background(), "Mystery Dish")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if detail.Name != "Mystery Dish" {
		t.Fatalf("Name = %q, want requested dish name", detail.Name)
	}
}

func TestDetailParseFailure(t *testing.T) {
	model := &fakeModel{response: "not json at all"}
	svc, _ := newTestService(t, model)

	_, err := svc.Detail(context.Background(), "Omelette")
	if !common.IsCode(err, common.ErrCodeResponseParse) {
		t.Fatalf("err = %v, want RESPONSE_PARSE", err)
	}
}

func TestDetailEmptyName(t *testing.T) {
	model := &fakeModel{response: detailResponse}
	svc, _ := newTestService(t, model)

	_, err := svc.Detail(context.Background(), "   ")
	if !errors.Is(err, common.ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
	if model.calls != 0 {
		t.Fatalf("model called %d times for empty name, want 0", model.calls)
	}
}
