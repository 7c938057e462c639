package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// Picker selects questions for a user. Selection within the final candidate
// pool is uniform-random; the random source is injected so tests can seed it.
type Picker struct {
	content  ContentStore
	progress ProgressStore

	mu  sync.Mutex // rand.Rand is not safe for concurrent use
	rng *rand.Rand
}

// NewPicker builds a picker around the given stores and random source.
func NewPicker(content ContentStore, progress ProgressStore, rng *rand.Rand) *Picker {
	return &Picker{content: content, progress: progress, rng: rng}
}

// Pick returns one question from the section at the target difficulty,
// preferring questions the user has never answered correctly. Fallback tiers:
//
//  1. section + difficulty, excluding globally mastered questions
//  2. section + difficulty (recycle wrong or unattempted)
//  3. section, any difficulty
//
// When every tier is empty the pool is exhausted.
func (p *Picker) Pick(ctx context.Context, userID, sectionID uuid.UUID, difficulty string) (Question, error) {
	mastered, err := p.progress.CorrectQuestionIDs(ctx, userID)
	if err != nil {
		return Question{}, fmt.Errorf("load mastered questions: %w", err)
	}

	pool, err := p.content.QuestionsBySection(ctx, sectionID, difficulty, mastered)
	if err != nil {
		return Question{}, fmt.Errorf("load question pool: %w", err)
	}
	if len(pool) == 0 {
		pool, err = p.content.QuestionsBySection(ctx, sectionID, difficulty, nil)
		if err != nil {
			return Question{}, fmt.Errorf("load recycled pool: %w", err)
		}
	}
	if len(pool) == 0 {
		pool, err = p.content.QuestionsBySection(ctx, sectionID, "", nil)
		if err != nil {
			return Question{}, fmt.Errorf("load any-difficulty pool: %w", err)
		}
	}
	if len(pool) == 0 {
		return Question{}, fmt.Errorf("section %s: %w", sectionID, ErrQuestionPoolExhausted)
	}

	return pool[p.intn(len(pool))], nil
}

// PickBossBatch selects count questions for a final boss, drawn from every
// section of the world. Questions the user never answered correctly come
// first, sampled without replacement; when that unique pool is smaller than
// the batch, the remainder is padded with random repeats from the full world
// pool (with replacement).
func (p *Picker) PickBossBatch(ctx context.Context, userID, worldID uuid.UUID, count int) ([]Question, error) {
	mastered, err := p.progress.CorrectQuestionIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load mastered questions: %w", err)
	}

	unique, err := p.content.QuestionsByWorld(ctx, worldID, mastered)
	if err != nil {
		return nil, fmt.Errorf("load boss pool: %w", err)
	}

	if len(unique) >= count {
		return p.sample(unique, count), nil
	}

	all, err := p.content.QuestionsByWorld(ctx, worldID, nil)
	if err != nil {
		return nil, fmt.Errorf("load padding pool: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("world %s: %w", worldID, ErrQuestionPoolExhausted)
	}

	batch := p.sample(unique, len(unique))
	for len(batch) < count {
		batch = append(batch, all[p.intn(len(all))])
	}
	return batch, nil
}

// sample returns n questions from pool without replacement.
func (p *Picker) sample(pool []Question, n int) []Question {
	p.mu.Lock()
	order := p.rng.Perm(len(pool))
	p.mu.Unlock()

	out := make([]Question, 0, n)
	for _, idx := range order[:n] {
		out = append(out, pool[idx])
	}
	return out
}

func (p *Picker) intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(n)
}
