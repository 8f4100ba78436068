package services

import (
	"strings"

	"tempvox/internal/core/domain"
	"tempvox/pkg/utils"
)

// DefaultNameTemplate is used when a community configures no template.
const DefaultNameTemplate = "{display}'s channel"

// RenderNameTemplate synthesizes a channel name from the community
// template. Supported placeholders: {display}, {username}, {tag}, {id},
// {activity}, {time}, {date}.
func RenderNameTemplate(template string, m *domain.Member) string {
	if template == "" {
		template = DefaultNameTemplate
	}

	now := utils.Now()
	activity := m.Activity
	if activity == "" {
		activity = "chilling"
	}

	r := strings.NewReplacer(
		"{display}", m.DisplayName,
		"{username}", m.Username,
		"{tag}", m.Tag,
		"{id}", string(m.ID),
		"{activity}", activity,
		"{time}", now.Format("15:04"),
		"{date}", now.Format("2006-01-02"),
	)

	name := strings.TrimSpace(r.Replace(template))
	if name == "" {
		name = m.DisplayName + "'s channel"
	}
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}
