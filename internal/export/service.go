package export

import (
	"context"
	"fmt"

	"grimoire/api/internal/monster"
)

// MonsterStore defines the data access the exporter needs.
type MonsterStore interface {
	Get(ctx context.Context, userID, monsterID string) (monster.Monster, error)
}

// Service renders and exports monster stat blocks.
type Service struct {
	monsters MonsterStore
}

func NewService(monsters MonsterStore) *Service {
	return &Service{monsters: monsters}
}

// Export generates an export in the requested format.
func (s *Service) Export(ctx context.Context, userID string, req Request) (*Result, error) {
	m, err := s.monsters.Get(ctx, userID, req.MonsterID)
	if err != nil {
		return nil, err
	}

	name := m.Name
	if name == "" {
		name = "Unnamed Monster"
	}

	html, err := RenderStatblockHTML(TemplateData{Name: name, Monster: m})
	if err != nil {
		return nil, fmt.Errorf("render statblock: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(ctx, html, name)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
