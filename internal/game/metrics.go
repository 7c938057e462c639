package game

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	answersScoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gameserver_answers_scored_total",
		Help: "Scored answer submissions by result.",
	}, []string{"result"})

	levelsClearedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gameserver_levels_cleared_total",
		Help: "Level completions by unlock outcome.",
	}, []string{"unlock"})
)

func observeOutcome(outcome AnswerOutcome) {
	for _, res := range outcome.Results {
		if res.Correct {
			answersScoredTotal.WithLabelValues("correct").Inc()
		} else {
			answersScoredTotal.WithLabelValues("wrong").Inc()
		}
	}
	if outcome.LevelCleared && outcome.Unlock != nil {
		levelsClearedTotal.WithLabelValues(string(outcome.Unlock.Status)).Inc()
	}
}
