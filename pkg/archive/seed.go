package archive

import (
	"fmt"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/repository/seed"
)

// LoadSeed reads entities from a YAML seed file.
func LoadSeed(path string) ([]Entity, error) {
	des, err := seed.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	out := make([]Entity, len(des))
	for i := range des {
		p := des[i].Params()
		out[i] = Entity{
			ID:         p.ID,
			Type:       p.Type,
			TitleEN:    p.TitleEN,
			TitleZH:    p.TitleZH,
			BodyEN:     p.BodyEN,
			BodyZH:     p.BodyZH,
			Tags:       p.Tags,
			Status:     p.Status,
			Visibility: p.Visibility,
			CreatedAt:  p.CreatedAt,
			UpdatedAt:  p.UpdatedAt,
		}
	}
	return out, nil
}
