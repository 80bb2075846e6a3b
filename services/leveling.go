package services

import (
	"fmt"

	"essence-engine/models"
)

// DefaultLevelConstant is K in threshold(level) = K * level^2.
const DefaultLevelConstant = 100

// LevelUp is one level crossed by an award.
type LevelUp struct {
	Level int    `json:"level"`
	Title string `json:"title"`
}

// LevelTable derives level and title from cumulative essence. It is built
// once at startup and never mutated.
type LevelTable struct {
	k        int64
	titles   []string
	fallback string
}

func NewLevelTable(k int64, titles []string, fallback string) (*LevelTable, error) {
	if k <= 0 {
		return nil, fmt.Errorf("level constant must be positive, got %d", k)
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("level table needs at least one title")
	}
	if fallback == "" {
		return nil, fmt.Errorf("level table needs a fallback title")
	}
	return &LevelTable{
		k:        k,
		titles:   append([]string(nil), titles...),
		fallback: fallback,
	}, nil
}

// RequiredEssence returns the cumulative essence needed to be at level.
func (t *LevelTable) RequiredEssence(level int) int64 {
	if level <= 1 {
		return 0
	}
	l := int64(level)
	return t.k * l * l
}

// Title returns the title for level; levels past the table get the fallback.
func (t *LevelTable) Title(level int) string {
	if level < 1 {
		level = 1
	}
	if level > len(t.titles) {
		return t.fallback
	}
	return t.titles[level-1]
}

// Len is the number of titled levels.
func (t *LevelTable) Len() int { return len(t.titles) }

// BaseTitle is the title of a fresh level-1 profile.
func (t *LevelTable) BaseTitle() string { return t.titles[0] }

// LevelFor returns the largest level whose threshold total reaches.
func (t *LevelTable) LevelFor(total int64) int {
	level := 1
	for total >= t.RequiredEssence(level+1) {
		level++
	}
	return level
}

// CheckLevelUp advances p across every threshold its total now reaches and
// returns the levels crossed, lowest first. A single large award can cross
// several levels.
func (t *LevelTable) CheckLevelUp(p *models.Profile) []LevelUp {
	if p.CurrentLevel < 1 {
		p.CurrentLevel = 1
	}
	var ups []LevelUp
	for p.TotalEssence >= t.RequiredEssence(p.CurrentLevel+1) {
		p.CurrentLevel++
		p.CurrentTitle = t.Title(p.CurrentLevel)
		ups = append(ups, LevelUp{Level: p.CurrentLevel, Title: p.CurrentTitle})
	}
	return ups
}

// ProgressToNextLevel is the percentage (0-100) of the way from the current
// level threshold to the next one.
func (t *LevelTable) ProgressToNextLevel(p models.Profile) float64 {
	current := t.RequiredEssence(p.CurrentLevel)
	next := t.RequiredEssence(p.CurrentLevel + 1)
	return float64(p.TotalEssence-current) / float64(next-current) * 100.0
}

// EssenceToNextLevel is how much more essence the next level needs.
func (t *LevelTable) EssenceToNextLevel(p models.Profile) int64 {
	return t.RequiredEssence(p.CurrentLevel+1) - p.TotalEssence
}
