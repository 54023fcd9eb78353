package engine

import "interview-engine-service/internal/domain"

// The six-question ladder is fixed: two questions per tier, with the
// per-question budget growing with difficulty.
var (
	difficultyPlan = [domain.QuestionCount]domain.Difficulty{
		domain.DifficultyEasy, domain.DifficultyEasy,
		domain.DifficultyMedium, domain.DifficultyMedium,
		domain.DifficultyHard, domain.DifficultyHard,
	}
	timeLimitPlan = [domain.QuestionCount]int{20, 20, 60, 60, 120, 120}

	stageLabels = map[domain.Difficulty]string{
		domain.DifficultyEasy:   "warm-up",
		domain.DifficultyMedium: "core",
		domain.DifficultyHard:   "deep-dive",
	}
)

// SchedulerConfig holds the advisory thresholds consulted at tier boundaries.
type SchedulerConfig struct {
	EasyToMediumThreshold int
	MediumToHardThreshold int
}

// DefaultSchedulerConfig returns production defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		EasyToMediumThreshold: 60,
		MediumToHardThreshold: 65,
	}
}

// Scheduler is a pure mapping from question index to difficulty, time limit,
// and stage label. It holds no session state.
type Scheduler struct {
	config SchedulerConfig
}

func NewScheduler(config SchedulerConfig) *Scheduler {
	return &Scheduler{config: config}
}

// DifficultyFor returns the tier for a question index.
func (s *Scheduler) DifficultyFor(index int) domain.Difficulty {
	if index < 0 || index >= domain.QuestionCount {
		return ""
	}
	return difficultyPlan[index]
}

// TimeLimitFor returns the countdown budget in seconds for a question index.
func (s *Scheduler) TimeLimitFor(index int) int {
	if index < 0 || index >= domain.QuestionCount {
		return 0
	}
	return timeLimitPlan[index]
}

// StageLabel names the stage a question index belongs to.
func (s *Scheduler) StageLabel(index int) string {
	return stageLabels[s.DifficultyFor(index)]
}

// IsTierBoundary reports whether resolving the given index closes a difficulty
// tier (easy finishes at 1, medium at 3).
func (s *Scheduler) IsTierBoundary(index int) bool {
	return index == 1 || index == 3
}

// CanAdvance reports whether the mean of the scores earned at the tier ending
// at index meets the advisory threshold, and returns that mean and threshold.
// The scheduler never blocks progression; the verdict only annotates the
// session.
func (s *Scheduler) CanAdvance(index int, recentScores []int) (met bool, mean, threshold int) {
	if !s.IsTierBoundary(index) || len(recentScores) == 0 {
		return true, 0, 0
	}
	threshold = s.config.EasyToMediumThreshold
	if index == 3 {
		threshold = s.config.MediumToHardThreshold
	}
	sum := 0
	for _, score := range recentScores {
		sum += score
	}
	mean = sum / len(recentScores)
	return mean >= threshold, mean, threshold
}
