package seed

import (
	"time"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
)

type fileDTO struct {
	Entities []entityDTO `yaml:"entities"`
}

type entityDTO struct {
	ID         string    `yaml:"id"`
	Type       string    `yaml:"type"`
	TitleEN    string    `yaml:"title_en"`
	TitleZH    string    `yaml:"title_zh"`
	BodyEN     string    `yaml:"body_en"`
	BodyZH     string    `yaml:"body_zh"`
	Tags       []string  `yaml:"tags"`
	Status     string    `yaml:"status"`
	Visibility string    `yaml:"visibility"`
	CreatedAt  time.Time `yaml:"created_at"`
	UpdatedAt  time.Time `yaml:"updated_at"`
}

func (d entityDTO) params() entity.Params {
	return entity.Params{
		ID:         d.ID,
		Type:       d.Type,
		TitleEN:    d.TitleEN,
		TitleZH:    d.TitleZH,
		BodyEN:     d.BodyEN,
		BodyZH:     d.BodyZH,
		Tags:       d.Tags,
		Status:     d.Status,
		Visibility: d.Visibility,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}
