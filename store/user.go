package store

// User defines a site member known to the gateway. The gateway never creates
// users, it only reads them and increments their bonus point counter.
type User struct {
	UserID uint32 `db:"user_id" json:"user_id"`
	// UID is the short public identifier embedded in the per-user announce
	// URL (/sq/<uid>/announce). Unique and immutable.
	UID           string `db:"uid" json:"uid"`
	EmailVerified bool   `db:"email_verified" json:"email_verified"`
	IsBanned      bool   `db:"is_banned" json:"is_banned"`
	BonusPoints   uint64 `db:"bonus_points" json:"bonus_points"`
}

// Valid performs basic validation of the user info ensuring we have the
// minimum required data to be considered usable by the gateway
func (u User) Valid() bool {
	return u.UID != "" && !u.IsBanned
}

// Users is a slice of known users
type Users []User
