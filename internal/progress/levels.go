// Package progress derives levels, statistics, achievements, streaks and
// rankings from users and their goals. Everything here is pure.
package progress

import "math"

// Level is one band of the level table.
type Level struct {
	Level     int    `json:"level"`
	MinPoints int    `json:"minPoints"`
	MaxPoints int    `json:"maxPoints"`
	Title     string `json:"title"`
}

// Levels is the level table, lowest first.
var Levels = []Level{
	{1, 0, 50, "Novato"},
	{2, 51, 120, "Aprendiz"},
	{3, 121, 220, "Estudiante Determinado"},
	{4, 221, 350, "Cazador de Metas"},
	{5, 351, 500, "Guerrero Anti-Procrastinación"},
	{6, 501, 700, "Estratega Productivo"},
	{7, 701, 950, "Maestro del Tiempo"},
	{8, 951, 1250, "Líder de Productividad"},
	{9, 1251, 1600, "Leyenda Viviente"},
	{10, 1601, 2000, "Maestro de la Productividad"},
}

// LevelProgress places a point balance within the level table.
type LevelProgress struct {
	Level
	Progress     float64 `json:"progress"`
	PointsToNext int     `json:"pointsToNext"`
}

// LevelFor returns the level for points. Balances beyond the table stay at
// the top level with full progress.
func LevelFor(points int) LevelProgress {
	if points < 0 {
		points = 0
	}

	top := Levels[len(Levels)-1]
	current := top
	for _, l := range Levels {
		if points >= l.MinPoints && points <= l.MaxPoints {
			current = l
			break
		}
	}

	if current.Level == top.Level {
		return LevelProgress{Level: current, Progress: 100}
	}

	span := float64(current.MaxPoints - current.MinPoints)
	pct := float64(points-current.MinPoints) / span * 100
	pct = math.Max(0, math.Min(100, pct))

	return LevelProgress{
		Level:        current,
		Progress:     math.Round(pct*10) / 10,
		PointsToNext: current.MaxPoints - points,
	}
}
