package core

import (
	"cmp"
	"slices"

	"github.com/thongnm19089/share-fb/internal/models"
)

// RankPosts 按加权互动分降序排列, 分数相同时保持发现顺序
func RankPosts(records []models.PostRecord) []models.PostRecord {
	ranked := slices.Clone(records)
	slices.SortStableFunc(ranked, func(a, b models.PostRecord) int {
		return cmp.Compare(b.EngagementScore(), a.EngagementScore())
	})
	if ranked == nil {
		ranked = []models.PostRecord{}
	}
	return ranked
}
