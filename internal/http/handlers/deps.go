package handlers

import (
	"dealdrop/internal/config"
	"dealdrop/internal/repos"
	"dealdrop/internal/services"

	"github.com/jmoiron/sqlx"
)

type Deps struct {
	DealHandler    *DealHandler
	VoteHandler    *VoteHandler
	CommentHandler *CommentHandler
	ModHandler     *ModHandler

	Engagement *services.EngagementService
	Moderation *services.ModerationService
}

func NewDeps(db *sqlx.DB, cfg config.Config, auth *services.AuthService) *Deps {
	dealRepo := repos.NewDealRepo(db)
	voteRepo := repos.NewVoteRepo(db)
	engRepo := repos.NewEngagementRepo(db)
	commentRepo := repos.NewCommentRepo(db)
	catRepo := repos.NewCategoryRepo(db)
	shopRepo := repos.NewShopRepo(db)

	heat := services.HeatConfig{
		HalfLifeHours: cfg.HeatHalfLife.Hours(),
		ViewWeight:    cfg.ViewWeight,
		CommentWeight: cfg.CommentWeight,
	}

	voteSvc := services.NewVoteService(voteRepo)
	engSvc := services.NewEngagementService(engRepo, commentRepo, dealRepo, cfg.ViewDedupWindow)
	rankSvc := services.NewRankingService(dealRepo, heat)
	modSvc := services.NewModerationService(dealRepo)

	return &Deps{
		DealHandler:    &DealHandler{Ranking: rankSvc, Deals: dealRepo, Cats: catRepo, Shops: shopRepo, Comments: commentRepo, Engagement: engSvc, Moderation: modSvc, Votes: voteSvc},
		VoteHandler:    &VoteHandler{Votes: voteSvc, Engagement: engSvc},
		CommentHandler: &CommentHandler{Engagement: engSvc},
		ModHandler:     &ModHandler{Moderation: modSvc, Deals: dealRepo},
		Engagement:     engSvc,
		Moderation:     modSvc,
	}
}
