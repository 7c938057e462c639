package game

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPicker(store *memStore, seed int64) *Picker {
	return NewPicker(store, store, rand.New(rand.NewSource(seed)))
}

func TestPickExcludesMasteredQuestions(t *testing.T) {
	store := newMemStore()
	world := store.addWorld("World 1", intPtr(1), false)
	section := store.addSection(world, "Section 1", 1)
	level := store.addLevel(section, "Level 1", 1, false, false)
	userID := uuid.New()

	mastered, _ := store.addQuestion(section, "mastered", DifficultyEasy)
	fresh, _ := store.addQuestion(section, "fresh", DifficultyEasy)

	correct := true
	_, err := store.CreateRecord(context.Background(), QuestionRecord{
		UserID: userID, LevelID: level.ID, QuestionID: mastered.ID,
		Completed: true, Correct: &correct,
	})
	require.NoError(t, err)

	picker := newTestPicker(store, 1)
	for i := 0; i < 20; i++ {
		q, err := picker.Pick(context.Background(), userID, section.ID, DifficultyEasy)
		require.NoError(t, err)
		assert.Equal(t, fresh.ID, q.ID, "mastered question must never be dealt while others remain")
	}
}

func TestPickRecyclesWhenAllMastered(t *testing.T) {
	store := newMemStore()
	world := store.addWorld("World 1", intPtr(1), false)
	section := store.addSection(world, "Section 1", 1)
	level := store.addLevel(section, "Level 1", 1, false, false)
	userID := uuid.New()

	q, _ := store.addQuestion(section, "only", DifficultyEasy)
	correct := true
	_, err := store.CreateRecord(context.Background(), QuestionRecord{
		UserID: userID, LevelID: level.ID, QuestionID: q.ID,
		Completed: true, Correct: &correct,
	})
	require.NoError(t, err)

	picker := newTestPicker(store, 1)
	got, err := picker.Pick(context.Background(), userID, section.ID, DifficultyEasy)
	require.NoError(t, err)
	assert.Equal(t, q.ID, got.ID, "exhausted tier must recycle the mastered question")
}

func TestPickRelaxesDifficultyFilter(t *testing.T) {
	store := newMemStore()
	world := store.addWorld("World 1", intPtr(1), false)
	section := store.addSection(world, "Section 1", 1)
	userID := uuid.New()

	hardOnly, _ := store.addQuestion(section, "hard only", DifficultyHard)

	picker := newTestPicker(store, 1)
	got, err := picker.Pick(context.Background(), userID, section.ID, DifficultyEasy)
	require.NoError(t, err)
	assert.Equal(t, hardOnly.ID, got.ID)
}

func TestPickPoolExhausted(t *testing.T) {
	store := newMemStore()
	world := store.addWorld("World 1", intPtr(1), false)
	section := store.addSection(world, "Empty", 1)

	picker := newTestPicker(store, 1)
	_, err := picker.Pick(context.Background(), uuid.New(), section.ID, DifficultyEasy)
	assert.ErrorIs(t, err, ErrQuestionPoolExhausted)
	assert.True(t, IsNotFound(err))
}

func TestPickIsDeterministicWithSeededSource(t *testing.T) {
	store := newMemStore()
	world := store.addWorld("World 1", intPtr(1), false)
	section := store.addSection(world, "Section 1", 1)
	for i := 0; i < 8; i++ {
		store.addQuestion(section, string(rune('a'+i)), DifficultyEasy)
	}
	userID := uuid.New()

	first := newTestPicker(store, 42)
	second := newTestPicker(store, 42)
	for i := 0; i < 10; i++ {
		a, err := first.Pick(context.Background(), userID, section.ID, DifficultyEasy)
		require.NoError(t, err)
		b, err := second.Pick(context.Background(), userID, section.ID, DifficultyEasy)
		require.NoError(t, err)
		assert.Equal(t, a.ID, b.ID)
	}
}

func TestPickBossBatchWithoutReplacement(t *testing.T) {
	store := newMemStore()
	world := store.addWorld("World 1", intPtr(1), false)
	s1 := store.addSection(world, "Section 1", 1)
	s2 := store.addSection(world, "Section 2", 2)
	for i := 0; i < 6; i++ {
		store.addQuestion(s1, string(rune('a'+i)), DifficultyEasy)
		store.addQuestion(s2, string(rune('p'+i)), DifficultyNormal)
	}
	userID := uuid.New()

	picker := newTestPicker(store, 7)
	batch, err := picker.PickBossBatch(context.Background(), userID, world.ID, 10)
	require.NoError(t, err)
	require.Len(t, batch, 10)

	seen := make(map[uuid.UUID]int)
	for _, q := range batch {
		seen[q.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "question %s repeated in an over-sized pool", id)
	}
}

func TestPickBossBatchPadsSmallPool(t *testing.T) {
	store := newMemStore()
	world := store.addWorld("World 1", intPtr(1), false)
	section := store.addSection(world, "Section 1", 1)
	for i := 0; i < 3; i++ {
		store.addQuestion(section, string(rune('a'+i)), DifficultyEasy)
	}
	userID := uuid.New()

	picker := newTestPicker(store, 7)
	batch, err := picker.PickBossBatch(context.Background(), userID, world.ID, 10)
	require.NoError(t, err)
	assert.Len(t, batch, 10, "small pools pad the batch with repeats")

	distinct := make(map[uuid.UUID]struct{})
	for _, q := range batch {
		distinct[q.ID] = struct{}{}
	}
	assert.Len(t, distinct, 3)
}

func TestPickBossBatchEmptyWorld(t *testing.T) {
	store := newMemStore()
	world := store.addWorld("World 1", intPtr(1), false)
	store.addSection(world, "Section 1", 1)

	picker := newTestPicker(store, 7)
	_, err := picker.PickBossBatch(context.Background(), uuid.New(), world.ID, 10)
	assert.ErrorIs(t, err, ErrQuestionPoolExhausted)
}

func intPtr(v int) *int {
	return &v
}
