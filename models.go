package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           UserRole       `bun:"user_role,notnull" json:"user_role,omitempty"`
	Name           string         `bun:"name,notnull" json:"name,omitempty"`
	Username       string         `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone          string         `bun:"phone_number,unique,nullzero" json:"phone_number,omitempty"`
	Address        string         `bun:"address" json:"address,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"-"`
	Verified       bool           `bun:"is_verified" json:"is_verified"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	LoginAttempts  int            `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at,nullzero" json:"-"`
	LoggedInAt     *time.Time     `bun:"loggedin_at,nullzero" json:"-"`
	VerifiedAt     *time.Time     `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// MarkVerified flips the account into its terminal verified state.
func (u *User) MarkVerified(at time.Time) *User {
	u.Verified = true
	u.VerifiedAt = &at
	return u
}

// TaskStatus is the task's workflow status
type TaskStatus = string

const (
	// TaskStatusPending is the default status for new tasks
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress marks a task being worked on
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusDone marks a completed task
	TaskStatusDone TaskStatus = "done"
)

// Task is the task model. Ownership drives the owner-or-admin policy: a task
// may only be mutated by its owner or an admin.
type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:tsk"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Title         string     `bun:"title,notnull" json:"title,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	Status        TaskStatus `bun:"status,notnull,default:'pending'" json:"status,omitempty"`
	DueDate       *time.Time `bun:"due_date,nullzero" json:"due_date,omitempty"`
	OwnerID       uuid.UUID  `bun:"owner_id,notnull,type:uuid" json:"owner_id,omitempty"`
	Owner         *User      `bun:"rel:belongs-to,join:owner_id=id" json:"owner,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// PasswordResetStatus tracks the lifecycle of a reset token
type PasswordResetStatus = string

const (
	// ResetRequestedStatus means the token was issued and not yet consumed
	ResetRequestedStatus PasswordResetStatus = "requested"
	// ResetExpiredStatus is the expired status
	ResetExpiredStatus PasswordResetStatus = "expired"
	// ResetChangedStatus means the password was changed with this token
	ResetChangedStatus PasswordResetStatus = "changed"
)

// PasswordReset is a single-use, time-bound token that lets a user set a new
// password. The record id doubles as the emailed token.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_reset,alias:pwdr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        *uuid.UUID `bun:"user_id,notnull" json:"user_id,omitempty"`
	User          *User      `bun:"rel:has-one,join:user_id=id" json:"user,omitempty"`
	Status        string     `bun:"status,notnull" json:"status,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	ResetedAt     *time.Time `bun:"reseted_at,nullzero" json:"reseted_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// MarkPasswordAsReseted builds the partial record that consumes a token
func MarkPasswordAsReseted(id uuid.UUID) *PasswordReset {
	r := &PasswordReset{}
	r.ID = id
	r.Status = ResetChangedStatus
	n := time.Now()
	r.ResetedAt = &n
	return r
}

// VerificationState tracks where a signup sits in the OTP flow
type VerificationState = string

const (
	// VerificationUnverified is the state right after signup
	VerificationUnverified VerificationState = "unverified"
	// VerificationOTPSent means a code is outstanding for the account's email
	VerificationOTPSent VerificationState = "otp_sent"
	// VerificationVerified is the terminal state
	VerificationVerified VerificationState = "verified"
)
