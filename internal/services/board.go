package services

import (
	"math/rand"

	"goldtrio/internal/models"
)

// placeholderLoseFace is the last-resort decoy when nothing is configured.
const placeholderLoseFace models.CardFace = "💨"

// placeholderWinFace is the last-resort winning face.
const placeholderWinFace models.CardFace = "🌟"

// BoardGenerator builds shuffled boards: a fixed number of winning cells,
// the rest filled with decoys drawn uniformly from the available variants.
type BoardGenerator struct {
	size      int
	winning   int
	winFace   models.CardFace
	loseFaces []models.CardFace
}

// NewBoardGenerator builds a generator from the configured faces. The decoy
// fallback chain is: configured variants, then the single default variant,
// then a placeholder symbol. An empty win face falls back to a placeholder
// the same way.
func NewBoardGenerator(size, winning int, winFace string, loseFaces []string, defaultLoseFace string) *BoardGenerator {
	win := models.CardFace(winFace)
	if win == "" {
		win = placeholderWinFace
	}

	var lose []models.CardFace
	for _, f := range loseFaces {
		if f != "" {
			lose = append(lose, models.CardFace(f))
		}
	}
	if len(lose) == 0 && defaultLoseFace != "" {
		lose = []models.CardFace{models.CardFace(defaultLoseFace)}
	}
	if len(lose) == 0 {
		lose = []models.CardFace{placeholderLoseFace}
	}

	return &BoardGenerator{
		size:      size,
		winning:   winning,
		winFace:   win,
		loseFaces: lose,
	}
}

// WinFace returns the face a cell must show to count toward the winning
// triple.
func (g *BoardGenerator) WinFace() models.CardFace {
	return g.winFace
}

// Generate builds a fresh board: winning faces first, decoys drawn
// independently at random, then a uniform shuffle over all positions. Every
// cell starts face-down and unsolved.
func (g *BoardGenerator) Generate() models.Board {
	faces := make([]models.CardFace, 0, g.size)
	for i := 0; i < g.winning; i++ {
		faces = append(faces, g.winFace)
	}
	for i := g.winning; i < g.size; i++ {
		faces = append(faces, g.loseFaces[rand.Intn(len(g.loseFaces))])
	}

	rand.Shuffle(len(faces), func(i, j int) {
		faces[i], faces[j] = faces[j], faces[i]
	})

	board := make(models.Board, g.size)
	for i, f := range faces {
		board[i] = models.Cell{Face: f}
	}
	return board
}
