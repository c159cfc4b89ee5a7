package services

import (
	"fmt"
	"sort"
	"time"

	"dealdrop/internal/domain"
	"dealdrop/internal/repos"

	"golang.org/x/sync/singleflight"
)

const (
	SortHot    = "hot"
	SortNewest = "newest"
)

// DealSummary is one ranked listing entry: the deal, its counters, and
// the heat score snapshotted when the list was built.
type DealSummary struct {
	domain.Deal
	Snapshot domain.EngagementSnapshot
	Heat     float64
}

// RankingService orders published, unexpired deals for the Hot and
// Newest views. Scores are computed once per listing build from a
// single store snapshot, so pages cut from one request agree with each
// other; separate requests may see a deal shift rank as votes land.
type RankingService struct {
	Deals *repos.DealRepo
	Heat  HeatConfig

	group singleflight.Group
}

func NewRankingService(deals *repos.DealRepo, heat HeatConfig) *RankingService {
	return &RankingService{Deals: deals, Heat: heat}
}

// List returns one page of the requested view. page is 1-based.
func (s *RankingService) List(sortMode, categoryID string, page, pageSize int) ([]DealSummary, error) {
	if sortMode != SortHot && sortMode != SortNewest {
		return nil, fmt.Errorf("unknown sort %q", sortMode)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	// Identical concurrent builds collapse into one store read + sort.
	key := sortMode + "|" + categoryID
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.build(sortMode, categoryID, time.Now())
	})
	if err != nil {
		return nil, err
	}
	ranked := v.([]DealSummary)

	start := (page - 1) * pageSize
	if start >= len(ranked) {
		return []DealSummary{}, nil
	}
	end := start + pageSize
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[start:end], nil
}

func (s *RankingService) build(sortMode, categoryID string, now time.Time) ([]DealSummary, error) {
	rows, err := s.Deals.QueryPublished(categoryID, now)
	if err != nil {
		return nil, err
	}

	out := make([]DealSummary, 0, len(rows))
	for _, r := range rows {
		snap := domain.EngagementSnapshot{
			DealID:        r.ID,
			UpvoteCount:   r.Upvotes,
			DownvoteCount: r.Downvotes,
			ViewCount:     r.Views,
			CommentCount:  r.Comments,
		}
		age := 0.0
		if t, ok := domain.ParseTime(r.CreatedAt); ok {
			age = now.Sub(t).Hours()
		}
		out = append(out, DealSummary{
			Deal:     r.Deal,
			Snapshot: snap,
			Heat:     HeatScore(snap, age, s.Heat),
		})
	}

	// Total order: the id tie-break keeps pagination stable when scores
	// or timestamps collide.
	if sortMode == SortHot {
		sort.Slice(out, func(i, j int) bool {
			if out[i].Heat != out[j].Heat {
				return out[i].Heat > out[j].Heat
			}
			if out[i].CreatedAt != out[j].CreatedAt {
				return out[i].CreatedAt > out[j].CreatedAt
			}
			return out[i].ID < out[j].ID
		})
	} else {
		sort.Slice(out, func(i, j int) bool {
			if out[i].CreatedAt != out[j].CreatedAt {
				return out[i].CreatedAt > out[j].CreatedAt
			}
			return out[i].ID < out[j].ID
		})
	}
	return out, nil
}
