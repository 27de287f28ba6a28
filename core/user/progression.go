package user

// XP awarded as a side effect of user actions. Awards are applied after the
// triggering action has succeeded and are never reversed.
const (
	AwardCreateSession = 50
	AwardRSVPSession   = 10
	AwardJoinGroup     = 25
	AwardCreateGroup   = 30
)

// Level derives an Account's level from its cumulative XP total.
// The first four levels come every 500 XP; past 2000 XP, one per 1000.
func Level(xp int) int {
	switch {
	case xp < 500:
		return 1
	case xp < 1000:
		return 2
	case xp < 1500:
		return 3
	case xp < 2000:
		return 4
	default:
		return 5 + (xp-2000)/1000
	}
}
