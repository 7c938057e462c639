package game

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory ContentStore + ProgressStore used by the package
// tests. Single mutex, no transactional rollback: the core validates before
// it writes, so tests never rely on rollback behavior.
type memStore struct {
	mu sync.Mutex

	worlds    map[uuid.UUID]World
	sections  map[uuid.UUID]Section
	levels    map[uuid.UUID]Level
	questions map[uuid.UUID]Question
	answers   map[uuid.UUID]Answer

	cursors  map[string]WorldCursor
	progress map[uuid.UUID]LevelProgress
	records  map[uuid.UUID]QuestionRecord

	progressOrder []uuid.UUID
	recordOrder   []uuid.UUID

	nowFn func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		worlds:    make(map[uuid.UUID]World),
		sections:  make(map[uuid.UUID]Section),
		levels:    make(map[uuid.UUID]Level),
		questions: make(map[uuid.UUID]Question),
		answers:   make(map[uuid.UUID]Answer),
		cursors:   make(map[string]WorldCursor),
		progress:  make(map[uuid.UUID]LevelProgress),
		records:   make(map[uuid.UUID]QuestionRecord),
		nowFn:     time.Now,
	}
}

func cursorKey(userID, worldID uuid.UUID) string {
	return userID.String() + "/" + worldID.String()
}

// --- fixture builders ---

func (s *memStore) addWorld(name string, index *int, custom bool) World {
	w := World{ID: uuid.New(), Name: name, Index: index, IsCustom: custom}
	s.worlds[w.ID] = w
	return w
}

func (s *memStore) addSection(world World, name string, index int) Section {
	sec := Section{ID: uuid.New(), WorldID: world.ID, Name: name, Index: index}
	s.sections[sec.ID] = sec
	return sec
}

func (s *memStore) addLevel(section Section, name string, index int, boss, finalBoss bool) Level {
	l := Level{ID: uuid.New(), SectionID: section.ID, Name: name, Index: index, IsBossLevel: boss, IsFinalBossLevel: finalBoss}
	s.levels[l.ID] = l
	return l
}

// addQuestion creates a question with four answers; the first is correct.
func (s *memStore) addQuestion(section Section, prompt, difficulty string) (Question, []Answer) {
	q := Question{ID: uuid.New(), SectionID: section.ID, Prompt: prompt, Difficulty: difficulty, CreatedAt: s.nowFn()}
	s.questions[q.ID] = q
	answers := make([]Answer, 0, 4)
	for i := 0; i < 4; i++ {
		a := Answer{ID: uuid.New(), QuestionID: q.ID, Text: fmt.Sprintf("%s option %d", prompt, i), IsCorrect: i == 0}
		s.answers[a.ID] = a
		answers = append(answers, a)
	}
	return q, answers
}

func (s *memStore) correctAnswer(q Question) Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.answers {
		if a.QuestionID == q.ID && a.IsCorrect {
			return a
		}
	}
	panic("question has no correct answer")
}

func (s *memStore) wrongAnswer(q Question) Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.answers {
		if a.QuestionID == q.ID && !a.IsCorrect {
			return a
		}
	}
	panic("question has no wrong answer")
}

// --- ContentStore ---

func (s *memStore) WorldByID(_ context.Context, id uuid.UUID) (World, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.worlds[id]
	if !ok {
		return World{}, fmt.Errorf("world %s: %w", id, ErrNotFound)
	}
	return w, nil
}

func (s *memStore) SectionByID(_ context.Context, id uuid.UUID) (Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.sections[id]
	if !ok {
		return Section{}, fmt.Errorf("section %s: %w", id, ErrNotFound)
	}
	return sec, nil
}

func (s *memStore) LevelByID(_ context.Context, id uuid.UUID) (Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.levels[id]
	if !ok {
		return Level{}, fmt.Errorf("level %s: %w", id, ErrNotFound)
	}
	return l, nil
}

func (s *memStore) FirstLevelOfWorld(_ context.Context, worldID uuid.UUID) (Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Level
	for _, l := range s.levels {
		sec := s.sections[l.SectionID]
		if sec.WorldID != worldID {
			continue
		}
		if best == nil || l.Index < best.Index {
			cp := l
			best = &cp
		}
	}
	if best == nil {
		return Level{}, fmt.Errorf("world %s has no levels: %w", worldID, ErrNotFound)
	}
	return *best, nil
}

func (s *memStore) NextLevelInSection(_ context.Context, sectionID uuid.UUID, afterIndex int) (*Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Level
	for _, l := range s.levels {
		if l.SectionID != sectionID || l.Index <= afterIndex {
			continue
		}
		if best == nil || l.Index < best.Index {
			cp := l
			best = &cp
		}
	}
	return best, nil
}

func (s *memStore) NextCampaignSection(_ context.Context, afterIndex int) (*Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Section
	for _, sec := range s.sections {
		if s.worlds[sec.WorldID].IsCustom || sec.Index <= afterIndex {
			continue
		}
		if best == nil || sec.Index < best.Index {
			cp := sec
			best = &cp
		}
	}
	return best, nil
}

func (s *memStore) FirstLevelOfSection(_ context.Context, sectionID uuid.UUID) (*Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Level
	for _, l := range s.levels {
		if l.SectionID != sectionID {
			continue
		}
		if best == nil || l.Index < best.Index {
			cp := l
			best = &cp
		}
	}
	return best, nil
}

func (s *memStore) QuestionsBySection(_ context.Context, sectionID uuid.UUID, difficulty string, exclude []uuid.UUID) ([]Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	excluded := toSet(exclude)
	var out []Question
	for _, q := range s.questions {
		if q.SectionID != sectionID {
			continue
		}
		if difficulty != "" && q.Difficulty != difficulty {
			continue
		}
		if _, skip := excluded[q.ID]; skip {
			continue
		}
		out = append(out, q)
	}
	sortQuestions(out)
	return out, nil
}

func (s *memStore) QuestionsByWorld(_ context.Context, worldID uuid.UUID, exclude []uuid.UUID) ([]Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	excluded := toSet(exclude)
	var out []Question
	for _, q := range s.questions {
		if s.sections[q.SectionID].WorldID != worldID {
			continue
		}
		if _, skip := excluded[q.ID]; skip {
			continue
		}
		out = append(out, q)
	}
	sortQuestions(out)
	return out, nil
}

func (s *memStore) QuestionByID(_ context.Context, id uuid.UUID) (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return Question{}, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return q, nil
}

func (s *memStore) AnswerByID(_ context.Context, id uuid.UUID) (Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[id]
	if !ok {
		return Answer{}, fmt.Errorf("answer %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (s *memStore) AnswersForQuestion(_ context.Context, questionID uuid.UUID) ([]Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Answer
	for _, a := range s.answers {
		if a.QuestionID == questionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out, nil
}

// --- ProgressStore ---

func (s *memStore) WithTx(_ context.Context, fn func(ProgressStore) error) error {
	return fn(s)
}

func (s *memStore) Cursor(_ context.Context, userID, worldID uuid.UUID) (*WorldCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cursors[cursorKey(userID, worldID)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *memStore) SaveCursor(_ context.Context, cursor WorldCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cursor.UpdatedAt = s.nowFn()
	s.cursors[cursorKey(cursor.UserID, cursor.WorldID)] = cursor
	return nil
}

func (s *memStore) CreateLevelProgress(_ context.Context, userID, levelID uuid.UUID) (LevelProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.progress {
		if p.UserID == userID && p.LevelID == levelID && !p.Completed {
			return LevelProgress{}, fmt.Errorf("active progress exists for level %s: %w", levelID, ErrDataIntegrity)
		}
	}
	p := LevelProgress{ID: uuid.New(), UserID: userID, LevelID: levelID, StartedAt: s.nowFn()}
	s.progress[p.ID] = p
	s.progressOrder = append(s.progressOrder, p.ID)
	return p, nil
}

func (s *memStore) ActiveLevelProgress(_ context.Context, userID, levelID uuid.UUID) (*LevelProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.progressOrder {
		p := s.progress[id]
		if p.UserID == userID && p.LevelID == levelID && !p.Completed {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *memStore) CompleteLevelProgress(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[id]
	if !ok {
		return fmt.Errorf("progress %s: %w", id, ErrNotFound)
	}
	p.Completed = true
	p.CompletedAt = &at
	s.progress[id] = p
	return nil
}

func (s *memStore) CreateRecord(_ context.Context, record QuestionRecord) (QuestionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertRecordLocked(record), nil
}

func (s *memStore) CreateRecords(_ context.Context, records []QuestionRecord) ([]QuestionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]QuestionRecord, 0, len(records))
	for _, r := range records {
		out = append(out, s.insertRecordLocked(r))
	}
	return out, nil
}

func (s *memStore) insertRecordLocked(record QuestionRecord) QuestionRecord {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = s.nowFn()
	s.records[record.ID] = record
	s.recordOrder = append(s.recordOrder, record.ID)
	return record
}

func (s *memStore) RecordByID(_ context.Context, id uuid.UUID) (QuestionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return QuestionRecord{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return r, nil
}

func (s *memStore) RecordsByLevel(_ context.Context, userID, levelID uuid.UUID) ([]QuestionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []QuestionRecord
	for _, id := range s.recordOrder {
		r := s.records[id]
		if r.UserID == userID && r.LevelID == levelID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) CompleteRecord(_ context.Context, id uuid.UUID, correct bool, points int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	r.Completed = true
	r.Correct = &correct
	r.PointsChange = points
	r.CompletedAt = &at
	s.records[id] = r
	return nil
}

func (s *memStore) SumPointsByWorld(_ context.Context, userID, worldID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, r := range s.records {
		if r.UserID != userID {
			continue
		}
		level := s.levels[r.LevelID]
		if s.sections[level.SectionID].WorldID != worldID {
			continue
		}
		total += r.PointsChange
	}
	return total, nil
}

func (s *memStore) CorrectQuestionIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for _, r := range s.records {
		if r.UserID == userID && r.Correct != nil && *r.Correct {
			out = append(out, r.QuestionID)
		}
	}
	return out, nil
}

func (s *memStore) LevelStats(_ context.Context, userID, levelID uuid.UUID) (LevelStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats LevelStats
	for _, r := range s.records {
		if r.UserID != userID || r.LevelID != levelID {
			continue
		}
		stats.Points += r.PointsChange
		if r.Correct != nil && *r.Correct {
			stats.CorrectCount++
		}
	}
	return stats, nil
}

func (s *memStore) CompletedRecordCount(_ context.Context, userID, levelID uuid.UUID, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.records {
		if r.UserID == userID && r.LevelID == levelID && r.Completed && !r.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func toSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortQuestions(qs []Question) {
	sort.Slice(qs, func(i, j int) bool { return qs[i].Prompt < qs[j].Prompt })
}
