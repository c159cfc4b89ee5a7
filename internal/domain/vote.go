package domain

type VoteDirection string

const (
	VoteUp   VoteDirection = "UP"
	VoteDown VoteDirection = "DOWN"
)

// VoteState is a user's effective vote on a deal after an operation.
type VoteState string

const (
	NoVote    VoteState = "NO_VOTE"
	Upvoted   VoteState = "UPVOTED"
	Downvoted VoteState = "DOWNVOTED"
)

// Vote is the single ledger row per (deal, user). Casting the same
// direction twice withdraws the vote; the opposite direction replaces it.
type Vote struct {
	DealID    string        `db:"deal_id"`
	UserID    string        `db:"user_id"`
	Direction VoteDirection `db:"direction"`
	UpdatedAt string        `db:"updated_at"`
}

func (d VoteDirection) State() VoteState {
	if d == VoteDown {
		return Downvoted
	}
	return Upvoted
}
