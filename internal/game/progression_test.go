package game

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// progFixture wires a controller over the in-memory store with a campaign of
// two worlds:
//
//	World 1: Section 1 (L1, L2, L3 mini boss), Section 2 (L4, L5, L6 final boss)
//	World 2: Section 3 (L7 final boss)
type progFixture struct {
	store  *memStore
	ctrl   *Controller
	userID uuid.UUID

	world1, world2 World
	sec1, sec2     Section
	sec3           Section
	levels         []Level // L1..L7 in order
}

func newProgFixture(t *testing.T) *progFixture {
	t.Helper()
	store := newMemStore()

	world1 := store.addWorld("World 1", intPtr(1), false)
	world2 := store.addWorld("World 2", intPtr(2), false)
	sec1 := store.addSection(world1, "Section 1", 1)
	sec2 := store.addSection(world1, "Section 2", 2)
	sec3 := store.addSection(world2, "Section 3", 3)

	levels := []Level{
		store.addLevel(sec1, "Level 1", 1, false, false),
		store.addLevel(sec1, "Level 2", 2, false, false),
		store.addLevel(sec1, "Level 3", 3, true, false),
		store.addLevel(sec2, "Level 4", 4, false, false),
		store.addLevel(sec2, "Level 5", 5, false, false),
		store.addLevel(sec2, "Level 6", 6, false, true),
		store.addLevel(sec3, "Level 7", 7, false, true),
	}

	for i, sec := range []Section{sec1, sec2, sec3} {
		for j := 0; j < 12; j++ {
			store.addQuestion(sec, fmt.Sprintf("s%d easy %d", i, j), DifficultyEasy)
		}
		for j := 0; j < 6; j++ {
			store.addQuestion(sec, fmt.Sprintf("s%d normal %d", i, j), DifficultyNormal)
			store.addQuestion(sec, fmt.Sprintf("s%d hard %d", i, j), DifficultyHard)
		}
	}

	rules := DefaultRules()
	rng := rand.New(rand.NewSource(99))
	logger := zerolog.Nop()
	now := func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	picker := NewPicker(store, store, rng)
	sessions := NewSessionManager(store, rules)
	scorer := NewScorer(store, store, rules, now)
	ctrl := NewController(store, store, picker, sessions, scorer, rules, logger, now)

	return &progFixture{
		store:  store,
		ctrl:   ctrl,
		userID: uuid.New(),
		world1: world1,
		world2: world2,
		sec1:   sec1,
		sec2:   sec2,
		sec3:   sec3,
		levels: levels,
	}
}

// placeAt parks the user directly on a level, as if everything before it had
// been cleared.
func (f *progFixture) placeAt(t *testing.T, world World, level Level) {
	t.Helper()
	ctx := context.Background()
	_, err := f.store.CreateLevelProgress(ctx, f.userID, level.ID)
	require.NoError(t, err)
	require.NoError(t, f.store.SaveCursor(ctx, WorldCursor{UserID: f.userID, WorldID: world.ID, LevelID: level.ID}))
}

// answer deals the next question in the world and submits it.
func (f *progFixture) answer(t *testing.T, world World, correct bool) AnswerOutcome {
	t.Helper()
	ctx := context.Background()
	deal, err := f.ctrl.GetQuestions(ctx, f.userID, world.ID)
	require.NoError(t, err)
	require.Len(t, deal.Cards, 1)

	card := deal.Cards[0]
	ans := f.store.wrongAnswer(card.Question)
	if correct {
		ans = f.store.correctAnswer(card.Question)
	}
	out, err := f.ctrl.AnswerQuestions(ctx, f.userID, []AnswerSubmission{{RecordID: card.RecordID, AnswerID: ans.ID}})
	require.NoError(t, err)
	return out
}

// answerBoss deals the boss batch and submits it with correctCount right answers.
func (f *progFixture) answerBoss(t *testing.T, world World, correctCount int) AnswerOutcome {
	t.Helper()
	ctx := context.Background()
	deal, err := f.ctrl.GetQuestions(ctx, f.userID, world.ID)
	require.NoError(t, err)
	require.Len(t, deal.Cards, DefaultRules().BossLevelQuestionCount)

	subs := make([]AnswerSubmission, 0, len(deal.Cards))
	for i, card := range deal.Cards {
		ans := f.store.wrongAnswer(card.Question)
		if i < correctCount {
			ans = f.store.correctAnswer(card.Question)
		}
		subs = append(subs, AnswerSubmission{RecordID: card.RecordID, AnswerID: ans.ID})
	}
	out, err := f.ctrl.AnswerQuestions(ctx, f.userID, subs)
	require.NoError(t, err)
	return out
}

func TestCurrentPositionInstantiatesLazily(t *testing.T) {
	f := newProgFixture(t)
	ctx := context.Background()

	pos, err := f.ctrl.CurrentPosition(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)
	assert.Equal(t, f.levels[0].ID, pos.Level.ID)
	assert.False(t, pos.WorldCompleted)

	active, err := f.store.ActiveLevelProgress(ctx, f.userID, f.levels[0].ID)
	require.NoError(t, err)
	require.NotNil(t, active, "first access creates the progress record")

	again, err := f.ctrl.CurrentPosition(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)
	assert.Equal(t, pos.Level.ID, again.Level.ID)
}

func TestGetQuestionsIsIdempotent(t *testing.T) {
	f := newProgFixture(t)
	ctx := context.Background()

	first, err := f.ctrl.GetQuestions(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)
	second, err := f.ctrl.GetQuestions(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)

	require.Len(t, first.Cards, 1)
	require.Len(t, second.Cards, 1)
	assert.Equal(t, first.Cards[0].RecordID, second.Cards[0].RecordID)
	assert.Equal(t, first.Cards[0].Question.ID, second.Cards[0].Question.ID)
}

func TestNormalLevelClearsAfterThreeAnswers(t *testing.T) {
	f := newProgFixture(t)

	out := f.answer(t, f.world1, true)
	assert.False(t, out.LevelCleared)
	out = f.answer(t, f.world1, true)
	assert.False(t, out.LevelCleared)

	out = f.answer(t, f.world1, true)
	assert.True(t, out.LevelCleared)
	require.NotNil(t, out.Unlock)
	assert.Equal(t, UnlockNextLevel, out.Unlock.Status)
	require.NotNil(t, out.Unlock.NextLevel)
	assert.Equal(t, f.levels[1].ID, out.Unlock.NextLevel.ID)

	pos, err := f.ctrl.CurrentPosition(context.Background(), f.userID, f.world1.ID)
	require.NoError(t, err)
	assert.Equal(t, f.levels[1].ID, pos.Level.ID)
}

func TestPointsAndDifficultyProgression(t *testing.T) {
	f := newProgFixture(t)
	ctx := context.Background()

	diff, err := f.ctrl.DifficultyInWorld(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)
	assert.Equal(t, DifficultyEasy, diff)

	// Three correct easy answers: 30 points, past the low threshold.
	for i := 0; i < 3; i++ {
		f.answer(t, f.world1, true)
	}

	points, err := f.ctrl.PointsInWorld(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, points)

	diff, err = f.ctrl.DifficultyInWorld(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)
	assert.Equal(t, DifficultyNormal, diff)
}

func TestPointsNeverDropBelowZero(t *testing.T) {
	f := newProgFixture(t)
	ctx := context.Background()

	// A long streak of wrong answers marches through levels without the
	// world total ever dipping negative.
	for i := 0; i < 12; i++ {
		f.answer(t, f.world1, false)
		points, err := f.ctrl.PointsInWorld(ctx, f.userID, f.world1.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, points, 0, "after %d wrong answers", i+1)
	}
}

func TestMiniBossUnlocksNextSection(t *testing.T) {
	f := newProgFixture(t)
	f.placeAt(t, f.world1, f.levels[2]) // L3, mini boss ending Section 1

	var out AnswerOutcome
	for i := 0; i < 3; i++ {
		out = f.answer(t, f.world1, true)
	}
	require.True(t, out.LevelCleared)
	require.NotNil(t, out.Unlock)
	assert.Equal(t, UnlockNextLevel, out.Unlock.Status)
	assert.Equal(t, f.levels[3].ID, out.Unlock.NextLevel.ID, "first level of Section 2")
}

func TestFinalBossFailureKeepsLevelOpenAndRedeals(t *testing.T) {
	f := newProgFixture(t)
	f.placeAt(t, f.world1, f.levels[5]) // L6, final boss
	ctx := context.Background()

	firstDeal, err := f.ctrl.GetQuestions(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)
	firstIDs := make(map[uuid.UUID]struct{})
	for _, card := range firstDeal.Cards {
		firstIDs[card.RecordID] = struct{}{}
	}

	out := f.answerBoss(t, f.world1, 4)
	assert.False(t, out.LevelCleared)
	assert.Nil(t, out.Unlock)

	pos, err := f.ctrl.CurrentPosition(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)
	assert.Equal(t, f.levels[5].ID, pos.Level.ID, "failed boss keeps the user on the level")

	redeal, err := f.ctrl.GetQuestions(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)
	require.Len(t, redeal.Cards, 10)
	for _, card := range redeal.Cards {
		_, reused := firstIDs[card.RecordID]
		assert.False(t, reused, "failed boss must deal a brand-new batch")
	}
}

func TestFinalBossPassUnlocksNextCampaignWorld(t *testing.T) {
	f := newProgFixture(t)
	f.placeAt(t, f.world1, f.levels[5]) // L6, final boss of World 1
	ctx := context.Background()

	out := f.answerBoss(t, f.world1, 6)
	require.True(t, out.LevelCleared)
	require.NotNil(t, out.Unlock)
	assert.Equal(t, UnlockNextLevel, out.Unlock.Status)
	assert.Equal(t, f.levels[6].ID, out.Unlock.NextLevel.ID, "first level of World 2")

	pos, err := f.ctrl.CurrentPosition(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)
	assert.True(t, pos.WorldCompleted)

	pos, err = f.ctrl.CurrentPosition(ctx, f.userID, f.world2.ID)
	require.NoError(t, err)
	assert.Equal(t, f.levels[6].ID, pos.Level.ID)
	assert.False(t, pos.WorldCompleted)
}

func TestFinalBossOfLastWorldCompletesCampaign(t *testing.T) {
	f := newProgFixture(t)
	f.placeAt(t, f.world2, f.levels[6]) // L7, final boss of the last world

	out := f.answerBoss(t, f.world2, 10)
	require.True(t, out.LevelCleared)
	require.NotNil(t, out.Unlock)
	assert.Equal(t, UnlockCampaignDone, out.Unlock.Status)
	assert.Nil(t, out.Unlock.NextLevel)

	pos, err := f.ctrl.CurrentPosition(context.Background(), f.userID, f.world2.ID)
	require.NoError(t, err)
	assert.True(t, pos.WorldCompleted)
}

func TestCustomWorldAdvancesWithinItsSection(t *testing.T) {
	f := newProgFixture(t)
	custom := f.store.addWorld("Challenge", nil, true)
	sec := f.store.addSection(custom, "Challenge Section", 100)
	l1 := f.store.addLevel(sec, "Custom Level 1", 101, false, false)
	l2 := f.store.addLevel(sec, "Custom Level 2", 102, false, false)
	for i := 0; i < 6; i++ {
		f.store.addQuestion(sec, fmt.Sprintf("custom %d", i), DifficultyEasy)
	}
	f.placeAt(t, custom, l1)

	var out AnswerOutcome
	for i := 0; i < 3; i++ {
		out = f.answer(t, custom, true)
	}
	require.True(t, out.LevelCleared)
	require.NotNil(t, out.Unlock)
	assert.Equal(t, UnlockNextLevel, out.Unlock.Status)
	require.NotNil(t, out.Unlock.NextLevel)
	assert.Equal(t, l2.ID, out.Unlock.NextLevel.ID)
}

func TestCustomWorldSingleLevelEndsWorld(t *testing.T) {
	f := newProgFixture(t)
	custom := f.store.addWorld("Assignment", nil, true)
	sec := f.store.addSection(custom, "Assignment Section", 200)
	l1 := f.store.addLevel(sec, "Custom Level 1", 201, false, false)
	for i := 0; i < 4; i++ {
		f.store.addQuestion(sec, fmt.Sprintf("assign %d", i), DifficultyEasy)
	}
	f.placeAt(t, custom, l1)

	var out AnswerOutcome
	for i := 0; i < 3; i++ {
		out = f.answer(t, custom, true)
	}
	require.True(t, out.LevelCleared)
	require.NotNil(t, out.Unlock)
	assert.Equal(t, UnlockWorldDone, out.Unlock.Status)

	_, err := f.ctrl.GetQuestions(context.Background(), f.userID, custom.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied, "completed worlds deal no questions")
}

func TestEmptyNextSectionTreatedAsWorldComplete(t *testing.T) {
	store := newMemStore()
	world := store.addWorld("Anomalous", intPtr(1), false)
	sec1 := store.addSection(world, "Section 1", 1)
	store.addSection(world, "Empty Section", 2)
	l1 := store.addLevel(sec1, "Level 1", 1, false, false)
	for i := 0; i < 4; i++ {
		store.addQuestion(sec1, fmt.Sprintf("q%d", i), DifficultyEasy)
	}

	rules := DefaultRules()
	now := func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	ctrl := NewController(store, store,
		NewPicker(store, store, rand.New(rand.NewSource(3))),
		NewSessionManager(store, rules),
		NewScorer(store, store, rules, now),
		rules, zerolog.Nop(), now)

	userID := uuid.New()
	ctx := context.Background()
	_, err := store.CreateLevelProgress(ctx, userID, l1.ID)
	require.NoError(t, err)
	require.NoError(t, store.SaveCursor(ctx, WorldCursor{UserID: userID, WorldID: world.ID, LevelID: l1.ID}))

	var out AnswerOutcome
	for i := 0; i < 3; i++ {
		deal, err := ctrl.GetQuestions(ctx, userID, world.ID)
		require.NoError(t, err)
		ans := store.correctAnswer(deal.Cards[0].Question)
		out, err = ctrl.AnswerQuestions(ctx, userID, []AnswerSubmission{{RecordID: deal.Cards[0].RecordID, AnswerID: ans.ID}})
		require.NoError(t, err)
	}
	require.True(t, out.LevelCleared)
	require.NotNil(t, out.Unlock)
	assert.Equal(t, UnlockWorldDone, out.Unlock.Status, "zero-level section self-heals to world complete")
}

func TestAnswerQuestionsRejectsForeignSession(t *testing.T) {
	f := newProgFixture(t)
	ctx := context.Background()

	deal, err := f.ctrl.GetQuestions(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)
	ans := f.store.correctAnswer(deal.Cards[0].Question)

	intruder := uuid.New()
	_, err = f.ctrl.AnswerQuestions(ctx, intruder, []AnswerSubmission{{RecordID: deal.Cards[0].RecordID, AnswerID: ans.ID}})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestAnswerQuestionsRejectsDoubleSubmit(t *testing.T) {
	f := newProgFixture(t)
	ctx := context.Background()

	deal, err := f.ctrl.GetQuestions(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)
	card := deal.Cards[0]
	ans := f.store.correctAnswer(card.Question)

	_, err = f.ctrl.AnswerQuestions(ctx, f.userID, []AnswerSubmission{{RecordID: card.RecordID, AnswerID: ans.ID}})
	require.NoError(t, err)

	_, err = f.ctrl.AnswerQuestions(ctx, f.userID, []AnswerSubmission{{RecordID: card.RecordID, AnswerID: ans.ID}})
	assert.ErrorIs(t, err, ErrSessionAlreadyCompleted)
}

func TestBossBatchRejectsDuplicateSessions(t *testing.T) {
	f := newProgFixture(t)
	f.placeAt(t, f.world1, f.levels[5]) // L6, final boss
	ctx := context.Background()

	deal, err := f.ctrl.GetQuestions(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)
	require.Len(t, deal.Cards, DefaultRules().BossLevelQuestionCount)

	// Replay one mastered card for every slot in the batch.
	card := deal.Cards[0]
	ans := f.store.correctAnswer(card.Question)
	subs := make([]AnswerSubmission, 0, len(deal.Cards))
	for range deal.Cards {
		subs = append(subs, AnswerSubmission{RecordID: card.RecordID, AnswerID: ans.ID})
	}

	_, err = f.ctrl.AnswerQuestions(ctx, f.userID, subs)
	assert.ErrorIs(t, err, ErrValidation)

	rec, err := f.store.RecordByID(ctx, card.RecordID)
	require.NoError(t, err)
	assert.False(t, rec.Completed, "rejected batch must not resolve any session")

	pos, err := f.ctrl.CurrentPosition(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)
	assert.Equal(t, f.levels[5].ID, pos.Level.ID, "boss level stays open")
}

func TestReopenedLevelStartsQuotaFresh(t *testing.T) {
	f := newProgFixture(t)

	// Deterministic store clock so the reopened visit starts strictly after
	// the first visit's sessions.
	tick := 0
	f.store.nowFn = func() time.Time {
		tick++
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(tick) * time.Second)
	}

	out := f.answer(t, f.world1, true)
	out = f.answer(t, f.world1, true)
	out = f.answer(t, f.world1, true)
	require.True(t, out.LevelCleared)

	// Reopen the cleared level, as an operator reset would: close the
	// progress the unlock opened on the next level and park the user back.
	ctx := context.Background()
	next, err := f.store.ActiveLevelProgress(ctx, f.userID, f.levels[1].ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.NoError(t, f.store.CompleteLevelProgress(ctx, next.ID, f.store.nowFn()))
	f.placeAt(t, f.world1, f.levels[0])

	out = f.answer(t, f.world1, true)
	assert.False(t, out.LevelCleared, "old sessions must not count toward the new visit")
	out = f.answer(t, f.world1, true)
	assert.False(t, out.LevelCleared)
	out = f.answer(t, f.world1, true)
	assert.True(t, out.LevelCleared)
}

func TestAnswerQuestionsRejectsWrongBatchShape(t *testing.T) {
	f := newProgFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.AnswerQuestions(ctx, f.userID, nil)
	assert.ErrorIs(t, err, ErrValidation)

	// Forge two open sessions on a normal level and submit both.
	q1, _ := f.store.addQuestion(f.sec1, "forged 1", DifficultyEasy)
	q2, _ := f.store.addQuestion(f.sec1, "forged 2", DifficultyEasy)
	r1, err := f.store.CreateRecord(ctx, QuestionRecord{UserID: f.userID, LevelID: f.levels[0].ID, QuestionID: q1.ID})
	require.NoError(t, err)
	r2, err := f.store.CreateRecord(ctx, QuestionRecord{UserID: f.userID, LevelID: f.levels[0].ID, QuestionID: q2.ID})
	require.NoError(t, err)

	_, err = f.ctrl.AnswerQuestions(ctx, f.userID, []AnswerSubmission{
		{RecordID: r1.ID, AnswerID: f.store.correctAnswer(q1).ID},
		{RecordID: r2.ID, AnswerID: f.store.correctAnswer(q2).ID},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetQuestionsReturnsLevelStats(t *testing.T) {
	f := newProgFixture(t)
	ctx := context.Background()

	f.answer(t, f.world1, true)
	f.answer(t, f.world1, true)

	deal, err := f.ctrl.GetQuestions(ctx, f.userID, f.world1.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, deal.Stats.Points)
	assert.Equal(t, 2, deal.Stats.CorrectCount)
}
